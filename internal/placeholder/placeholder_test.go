package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		bindings Bindings
		want     string
	}{
		{"unresolved token stays", "Hello {{unknown}}", Bindings{}, "Hello {{unknown}}"},
		{"nil bindings", "Hello {{name}}", nil, "Hello {{name}}"},
		{"global replace", "{{name}} {{name}}", Bindings{"name": "Amy"}, "Amy Amy"},
		{"mixed", "{{a}}-{{b}}-{{c}}", Bindings{"a": "1", "c": "3"}, "1-{{b}}-3"},
		{"empty value blanks token", "x{{a}}y", Bindings{"a": ""}, "xy"},
		{"invalid identifier untouched", "{{ name }} {{na-me}}", Bindings{"name": "Amy"}, "{{ name }} {{na-me}}"},
		{"value with token syntax is not re-expanded", "{{a}}", Bindings{"a": "{{b}}", "b": "no"}, "{{b}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.content, tt.bindings))
		})
	}
}

func TestExtractFields(t *testing.T) {
	doc := document.New("t", document.CanvasSize{Width: 800, Height: 600})
	doc.Add(document.KindText, document.AddParams{Payload: &document.TextPayload{Content: "Certificate for {{student_name}}"}})
	doc.Add(document.KindText, document.AddParams{Payload: &document.TextPayload{Content: "{{course_name}} / {{student_name}} / {{grade}}"}})
	doc.Add(document.KindImage, document.AddParams{Payload: &document.ImagePayload{ImageURL: "{{not_text}}"}})

	assert.Equal(t, []string{"course_name", "grade", "student_name"}, ExtractFields(doc))
}

func TestEndToEndSubstitution(t *testing.T) {
	doc := document.New("t", document.CanvasSize{Width: 800, Height: 600})
	doc.Add(document.KindText, document.AddParams{Payload: &document.TextPayload{Content: "Certificate for {{student_name}}"}})

	assert.Equal(t, []string{"student_name"}, ExtractFields(doc))

	resolved := Apply(doc, Bindings{"student_name": "Jane Doe"}, "")
	assert.Equal(t, "Certificate for Jane Doe", resolved.Elements[0].Payload.(*document.TextPayload).Content)
	assert.Equal(t, "Certificate for {{student_name}}", doc.Elements[0].Payload.(*document.TextPayload).Content,
		"source document must not change")
}

func TestApplyRebindsLogoAndQR(t *testing.T) {
	doc := document.New("t", document.CanvasSize{Width: 800, Height: 600})
	logo := doc.Add(document.KindImage, document.AddParams{Payload: &document.ImagePayload{ImageURL: document.LandscapeLogoSentinel}})
	photo := doc.Add(document.KindImage, document.AddParams{Payload: &document.ImagePayload{ImageURL: "https://example.com/photo.jpg"}})
	qr := doc.Add(document.KindQR, document.AddParams{})

	out := Apply(doc, Bindings{
		FieldCompanyLogo: "https://cdn.example.com/acme.png",
		FieldQRTargetURL: "https://verify.example.com/abc",
	}, "https://default-link.com")

	byID := map[string]*document.Element{}
	for _, el := range out.Elements {
		byID[el.ID] = el
	}
	assert.Equal(t, "https://cdn.example.com/acme.png", byID[logo.ID].Payload.(*document.ImagePayload).ImageURL)
	assert.Equal(t, "https://example.com/photo.jpg", byID[photo.ID].Payload.(*document.ImagePayload).ImageURL)
	assert.Equal(t, "https://verify.example.com/abc", byID[qr.ID].Payload.(*document.QRPayload).Value)
}

func TestQRValueFallback(t *testing.T) {
	assert.Equal(t, "https://default-link.com", Bindings{}.QRValue("https://default-link.com"))
	assert.Equal(t, "s", Bindings{FieldStudentQRURL: "s"}.QRValue("d"))
	assert.Equal(t, "q", Bindings{FieldStudentQRURL: "s", FieldQRTargetURL: "q"}.QRValue("d"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Student Name", Label("student_name"))
	fields := Describe([]string{"completion_date"})
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Name: "completion_date", Label: "Completion Date"}, fields[0])
}
