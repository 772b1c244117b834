package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownKind  = errors.New("unknown element type")
	ErrDuplicateID  = errors.New("duplicate element id")
	ErrMissingID    = errors.New("element id is required")
	ErrInvalidShape = errors.New("element width and height must be positive")
)

// wireElement is the flat JSON form shared with the browser, the template
// store and the export service.
type wireElement struct {
	ID       json.RawMessage `json:"id"`
	Type     string          `json:"type"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	ZIndex   int             `json:"zIndex"`
	Rotation float64         `json:"rotation,omitempty"`

	Content         string    `json:"content,omitempty"`
	FontSize        float64   `json:"fontSize,omitempty"`
	FontFamily      string    `json:"fontFamily,omitempty"`
	FontWeight      string    `json:"fontWeight,omitempty"`
	FontStyle       string    `json:"fontStyle,omitempty"`
	TextDecoration  string    `json:"textDecoration,omitempty"`
	TextAlign       TextAlign `json:"textAlign,omitempty"`
	Color           string    `json:"color,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	LineHeight      float64   `json:"lineHeight,omitempty"`
	DynamicField    string    `json:"dynamicField,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`
	QRValue  string `json:"qrValue,omitempty"`

	ShapeType    ShapeType `json:"shapeType,omitempty"`
	BorderColor  string    `json:"borderColor,omitempty"`
	BorderWidth  float64   `json:"borderWidth,omitempty"`
	CornerRadius float64   `json:"borderRadius,omitempty"`
}

type wireEncoder struct{ w *wireElement }

func (e wireEncoder) VisitText(p *TextPayload) {
	w := e.w
	w.Content = p.Content
	w.FontSize = p.FontSize
	w.FontFamily = p.FontFamily
	w.FontWeight = p.FontWeight
	w.FontStyle = p.FontStyle
	w.TextDecoration = p.TextDecoration
	w.TextAlign = p.TextAlign
	w.Color = p.Color
	w.BackgroundColor = p.BackgroundColor
	w.LineHeight = p.LineHeight
}

func (e wireEncoder) VisitImage(p *ImagePayload) {
	e.w.ImageURL = p.ImageURL
}

func (e wireEncoder) VisitShape(p *ShapePayload) {
	e.w.ShapeType = p.ShapeType
	e.w.BackgroundColor = p.BackgroundColor
	e.w.BorderColor = p.BorderColor
	e.w.BorderWidth = p.BorderWidth
	e.w.CornerRadius = p.CornerRadius
}

func (e wireEncoder) VisitQR(p *QRPayload) {
	e.w.ImageURL = p.ImageURL
	e.w.QRValue = p.Value
}

// MarshalJSON writes the flat element form.
func (e *Element) MarshalJSON() ([]byte, error) {
	id, err := json.Marshal(e.ID)
	if err != nil {
		return nil, err
	}
	w := wireElement{
		ID:       id,
		Type:     string(e.Kind()),
		X:        e.X,
		Y:        e.Y,
		Width:    e.Width,
		Height:   e.Height,
		ZIndex:   e.ZIndex,
		Rotation: e.Rotation,
	}
	if e.Payload == nil {
		return nil, fmt.Errorf("element %s: %w", e.ID, ErrUnknownKind)
	}
	e.Payload.Accept(wireEncoder{&w})
	return json.Marshal(w)
}

// UnmarshalJSON reads the flat element form. Older templates used the
// "dynamic" type for text and per-shape types such as "rectangle"; both
// are accepted. A dynamic element's dynamicField becomes a {{field}} token
// in place of its sample content, and an image carrying the QR sentinel
// decodes as a QR element.
func (e *Element) UnmarshalJSON(data []byte) error {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("element %s: %w", id, ErrInvalidShape)
	}

	payload, err := decodePayload(&w)
	if err != nil {
		return fmt.Errorf("element %s: %w", id, err)
	}

	*e = Element{
		ID:       id,
		X:        w.X,
		Y:        w.Y,
		Width:    w.Width,
		Height:   w.Height,
		ZIndex:   w.ZIndex,
		Rotation: w.Rotation,
		Payload:  payload,
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrMissingID
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "", ErrMissingID
		}
		return s, nil
	}
	// Numeric ids from legacy templates.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("element id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", fmt.Errorf("element id: %w", err)
	}
	return n.String(), nil
}

func decodePayload(w *wireElement) (Payload, error) {
	switch w.Type {
	case string(KindText), "dynamic":
		content := w.Content
		if w.Type == "dynamic" && isFieldName(w.DynamicField) {
			content = "{{" + w.DynamicField + "}}"
		}
		p := &TextPayload{
			Content:         content,
			FontSize:        w.FontSize,
			FontFamily:      w.FontFamily,
			FontWeight:      w.FontWeight,
			FontStyle:       w.FontStyle,
			TextDecoration:  w.TextDecoration,
			TextAlign:       w.TextAlign,
			Color:           w.Color,
			BackgroundColor: w.BackgroundColor,
			LineHeight:      w.LineHeight,
		}
		if p.FontSize <= 0 {
			p.FontSize = 20
		}
		if p.FontFamily == "" {
			p.FontFamily = "Arial"
		}
		switch p.TextAlign {
		case AlignLeft, AlignCenter, AlignRight:
		default:
			p.TextAlign = AlignCenter
		}
		if p.Color == "" {
			p.Color = "#000000"
		}
		if p.LineHeight <= 0 {
			p.LineHeight = 1.2
		}
		return p, nil

	case string(KindImage):
		if IsQRSentinel(w.ImageURL) {
			return &QRPayload{ImageURL: w.ImageURL, Value: w.QRValue}, nil
		}
		return &ImagePayload{ImageURL: w.ImageURL}, nil

	case string(KindQR):
		url := w.ImageURL
		if url == "" {
			url = QRSentinel
		}
		return &QRPayload{ImageURL: url, Value: w.QRValue}, nil

	case string(KindShape), string(ShapeRectangle), string(ShapeCircle), string(ShapeStar):
		st := w.ShapeType
		if w.Type != string(KindShape) {
			st = ShapeType(w.Type)
		}
		switch st {
		case ShapeRectangle, ShapeCircle, ShapeStar:
		default:
			st = ShapeRectangle
		}
		return &ShapePayload{
			ShapeType:       st,
			BackgroundColor: w.BackgroundColor,
			BorderColor:     w.BorderColor,
			BorderWidth:     max(w.BorderWidth, 0),
			CornerRadius:    max(w.CornerRadius, 0),
		}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKind, w.Type)
}

// isFieldName reports whether s can appear inside a {{field}} token.
func isFieldName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

type wireDocument struct {
	Name       string     `json:"name"`
	CanvasSize CanvasSize `json:"canvasSize"`
	Background Background `json:"background"`
	Elements   []*Element `json:"elements"`
}

// MarshalJSON writes the document as {name, canvasSize, background, elements}.
func (d *Document) MarshalJSON() ([]byte, error) {
	elements := d.Elements
	if elements == nil {
		elements = []*Element{}
	}
	return json.Marshal(wireDocument{
		Name:       d.Name,
		CanvasSize: d.Canvas,
		Background: d.Background,
		Elements:   elements,
	})
}

// UnmarshalJSON reads a document and checks element ids are unique.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	w.Elements = compact(w.Elements)
	if err := CheckUniqueIDs(w.Elements); err != nil {
		return err
	}
	canvas := w.CanvasSize
	if !canvas.Valid() {
		canvas = DefaultCanvasSize
	}
	bg := w.Background
	if bg.Color == "" && bg.Gradient == nil {
		bg.Color = DefaultBackgroundColor
	}
	gen := d.newID
	*d = Document{
		Name:       w.Name,
		Canvas:     canvas,
		Background: bg,
		Elements:   w.Elements,
		newID:      gen,
	}
	return nil
}

// CheckUniqueIDs returns ErrDuplicateID if two elements share an id.
func CheckUniqueIDs(elements []*Element) error {
	seen := make(map[string]bool, len(elements))
	for _, el := range elements {
		if el == nil {
			continue
		}
		if seen[el.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, el.ID)
		}
		seen[el.ID] = true
	}
	return nil
}

// DecodeElements parses a JSON element array, as stored on a template record.
func DecodeElements(data []byte) ([]*Element, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var elements []*Element
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	elements = compact(elements)
	if err := CheckUniqueIDs(elements); err != nil {
		return nil, err
	}
	return elements, nil
}

func compact(elements []*Element) []*Element {
	out := elements[:0]
	for _, el := range elements {
		if el != nil {
			out = append(out, el)
		}
	}
	return out
}
