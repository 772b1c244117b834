package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementJSONIsFlat(t *testing.T) {
	el := &Element{
		ID: "el_1", X: 10, Y: 20, Width: 100, Height: 40, ZIndex: 2,
		Payload: &ShapePayload{ShapeType: ShapeStar, BackgroundColor: "#ff0", BorderWidth: 2, CornerRadius: 4},
	}
	data, err := json.Marshal(el)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "shape", flat["type"])
	assert.Equal(t, "star", flat["shapeType"])
	assert.Equal(t, 4.0, flat["borderRadius"])
	assert.NotContains(t, flat, "content")
}

func TestDecodeLegacyElements(t *testing.T) {
	data := []byte(`[
		{"id": 1700000000000, "type": "dynamic", "x": 0, "y": 0, "width": 200, "height": 40, "content": "{{student_name}}"},
		{"id": "b", "type": "rectangle", "x": 0, "y": 0, "width": 50, "height": 50, "borderWidth": 3},
		{"id": "c", "type": "qr", "x": 0, "y": 0, "width": 80, "height": 80},
		{"id": "d", "type": "dynamic", "x": 0, "y": 0, "width": 300, "height": 40, "content": "John Doe", "dynamicField": "student_name"},
		{"id": "e", "type": "image", "x": 0, "y": 0, "width": 150, "height": 150, "imageUrl": "/qr-placeholder.jpg"},
		{"id": "f", "type": "dynamic", "x": 0, "y": 0, "width": 300, "height": 40, "content": "Jane", "dynamicField": "not a field"}
	]`)

	elements, err := DecodeElements(data)
	require.NoError(t, err)
	require.Len(t, elements, 6)

	assert.Equal(t, "1700000000000", elements[0].ID)
	text, ok := elements[0].Payload.(*TextPayload)
	require.True(t, ok)
	assert.Equal(t, AlignCenter, text.TextAlign)
	assert.Equal(t, 20.0, text.FontSize)

	shape, ok := elements[1].Payload.(*ShapePayload)
	require.True(t, ok)
	assert.Equal(t, ShapeRectangle, shape.ShapeType)
	assert.Equal(t, 3.0, shape.BorderWidth)

	assert.Equal(t, &QRPayload{ImageURL: QRSentinel}, elements[2].Payload)

	field, ok := elements[3].Payload.(*TextPayload)
	require.True(t, ok)
	assert.Equal(t, "{{student_name}}", field.Content)

	assert.Equal(t, KindQR, elements[4].Kind())
	assert.Equal(t, &QRPayload{ImageURL: QRSentinel}, elements[4].Payload)

	assert.Equal(t, "Jane", elements[5].Payload.(*TextPayload).Content)
}

func TestDecodeRejectsBadElements(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"unknown type", `[{"id":"a","type":"video","width":10,"height":10}]`, ErrUnknownKind},
		{"duplicate id", `[{"id":"a","type":"image","width":10,"height":10},{"id":"a","type":"image","width":10,"height":10}]`, ErrDuplicateID},
		{"missing id", `[{"type":"image","width":10,"height":10}]`, ErrMissingID},
		{"zero size", `[{"id":"a","type":"image","width":0,"height":10}]`, ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeElements([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDocumentJSONDefaults(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Blank","elements":null}`), &doc))
	assert.Equal(t, DefaultCanvasSize, doc.Canvas)
	assert.Equal(t, DefaultBackgroundColor, doc.Background.Color)

	data, err := json.Marshal(&doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Blank","canvasSize":{"width":842,"height":595},"background":{"color":"#ffffff"},"elements":[]}`, string(data))
}
