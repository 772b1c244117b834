// Package export turns a stored template plus recipient bindings into a
// PDF certificate, uploads it and reports a download URL.
package export

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNoElements = errors.New("template has no elements")
)

// RequiredFields must be present and non-blank in every export request.
var RequiredFields = []string{
	placeholder.FieldStudentName,
	placeholder.FieldCourseName,
	placeholder.FieldCompletionDate,
	placeholder.FieldInstructorName,
	placeholder.FieldGrade,
}

// ValidationError lists the request fields that are missing.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Request asks for one certificate.
type Request struct {
	TemplateID string               `json:"templateId"`
	Bindings   placeholder.Bindings `json:"bindings"`
}

// Validate reports every missing required field at once.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.TemplateID) == "" {
		missing = append(missing, "templateId")
	}
	for _, f := range RequiredFields {
		if strings.TrimSpace(r.Bindings[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Response is the export contract: a download URL on success, a message
// otherwise.
type Response struct {
	Success       bool     `json:"success"`
	ExportID      string   `json:"exportId,omitempty"`
	FileURL       string   `json:"fileUrl,omitempty"`
	FilePath      string   `json:"filePath,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	ErrorMessage  string   `json:"errorMessage,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// Result describes an uploaded certificate.
type Result struct {
	ID       string
	FileURL  string
	FilePath string
	Filename string
}

// dedupKey identifies requests that would produce the same certificate.
func dedupKey(orgID string, r Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\x00%s", orgID, r.TemplateID)
	for _, k := range slices.Sorted(maps.Keys(r.Bindings)) {
		fmt.Fprintf(&b, "\x00%s=%s", k, r.Bindings[k])
	}
	return b.String()
}
