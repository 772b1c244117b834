// Package placeholder finds {{field}} tokens in text elements and resolves
// them against per-recipient bindings.
package placeholder

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Reserved field names with non-text behavior.
const (
	FieldCompanyLogo  = "company_logo"
	FieldQRTargetURL  = "qr_target_url"
	FieldStudentQRURL = "student_qr_url"
)

// Standard fields collected by the certificate data form.
const (
	FieldStudentName    = "student_name"
	FieldCourseName     = "course_name"
	FieldCompletionDate = "completion_date"
	FieldInstructorName = "instructor_name"
	FieldGrade          = "grade"
	FieldOrgID          = "org_id"
)

// StandardFields lists the fields every export request carries.
var StandardFields = []string{
	FieldStudentName,
	FieldCourseName,
	FieldCompletionDate,
	FieldInstructorName,
	FieldGrade,
	FieldOrgID,
}

// Field describes one placeholder for the data form.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// FieldsInContent returns the distinct field names in content, in order of
// first appearance.
func FieldsInContent(content string) []string {
	var out []string
	for _, m := range tokenPattern.FindAllStringSubmatch(content, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

// ExtractFields returns the distinct set of field names used by any text
// element of doc, sorted by name.
func ExtractFields(doc *document.Document) []string {
	set := make(map[string]struct{})
	for _, el := range doc.Elements {
		text, ok := el.Payload.(*document.TextPayload)
		if !ok {
			continue
		}
		for _, name := range FieldsInContent(text.Content) {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Describe pairs field names with human labels.
func Describe(names []string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Label: Label(n)}
	}
	return out
}

// Label turns a field name into a form label: "student_name" -> "Student Name".
func Label(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}
