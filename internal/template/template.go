// Package template persists certificate templates per organization and
// serves them over HTTP.
package template

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

var (
	ErrNotFound        = errors.New("template not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidTemplate = errors.New("invalid template")
)

// Template is a stored certificate design.
type Template struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	OrganizationID string              `json:"organizationId"`
	Elements       []*document.Element `json:"elements"`
	CanvasWidth    int                 `json:"canvasWidth"`
	CanvasHeight   int                 `json:"canvasHeight"`
	Background     document.Background `json:"background"`
	ThumbnailURL   string              `json:"thumbnailUrl"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Document builds an editable document from the template.
func (t *Template) Document() *document.Document {
	doc := document.New(t.Name, document.CanvasSize{Width: t.CanvasWidth, Height: t.CanvasHeight})
	doc.Elements = document.CloneElements(t.Elements)
	if t.Background.Color != "" || t.Background.Gradient != nil {
		doc.Background = t.Background
	}
	return doc
}

func (t *Template) clone() *Template {
	c := *t
	c.Elements = document.CloneElements(t.Elements)
	if t.Background.Gradient != nil {
		g := *t.Background.Gradient
		c.Background.Gradient = &g
	}
	return &c
}

// Data is the writable part of a template, as sent by the editor on
// create and update.
type Data struct {
	Name         string               `json:"name"`
	Elements     []*document.Element  `json:"elements"`
	CanvasWidth  int                  `json:"canvasWidth"`
	CanvasHeight int                  `json:"canvasHeight"`
	Background   *document.Background `json:"background,omitempty"`
	ThumbnailURL string               `json:"thumbnailUrl,omitempty"`
}

// DataFromDocument captures doc for saving.
func DataFromDocument(doc *document.Document, thumbnailURL string) Data {
	bg := doc.Background
	if bg.Gradient != nil {
		g := *bg.Gradient
		bg.Gradient = &g
	}
	return Data{
		Name:         doc.Name,
		Elements:     document.CloneElements(doc.Elements),
		CanvasWidth:  doc.Canvas.Width,
		CanvasHeight: doc.Canvas.Height,
		Background:   &bg,
		ThumbnailURL: thumbnailURL,
	}
}

func (d *Data) normalize() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if d.CanvasWidth < 0 || d.CanvasHeight < 0 {
		return fmt.Errorf("%w: canvas size must be positive", ErrInvalidTemplate)
	}
	if d.CanvasWidth == 0 || d.CanvasHeight == 0 {
		d.CanvasWidth = document.DefaultCanvasSize.Width
		d.CanvasHeight = document.DefaultCanvasSize.Height
	}
	elements := d.Elements[:0]
	for _, el := range d.Elements {
		if el != nil {
			elements = append(elements, el)
		}
	}
	d.Elements = elements
	if err := document.CheckUniqueIDs(d.Elements); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return nil
}

func (d *Data) applyTo(t *Template) {
	t.Name = d.Name
	t.Elements = document.CloneElements(d.Elements)
	if t.Elements == nil {
		t.Elements = []*document.Element{}
	}
	t.CanvasWidth = d.CanvasWidth
	t.CanvasHeight = d.CanvasHeight
	if d.Background != nil {
		t.Background = *d.Background
	}
	if t.Background.Color == "" && t.Background.Gradient == nil {
		t.Background.Color = document.DefaultBackgroundColor
	}
	t.ThumbnailURL = d.ThumbnailURL
}
