package document

import (
	"strings"

	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

// MinElementSize is the smallest width or height an element may be resized to.
const MinElementSize = 20.0

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindShape Kind = "shape"
	KindQR    Kind = "qr"
)

// Kinds lists every element kind in the order the toolbar offers them.
var Kinds = []Kind{KindText, KindImage, KindShape, KindQR}

type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeStar      ShapeType = "star"
)

// Element is one placeable object on the canvas. Geometry and identity are
// shared by every kind; the kind-specific fields live in Payload.
type Element struct {
	ID       string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	ZIndex   int
	Rotation float64 // degrees about the box center, paint-time only
	Payload  Payload
}

// Kind returns the element's kind as determined by its payload.
func (e *Element) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Bounds returns the unrotated box of the element.
func (e *Element) Bounds() geometry.Rect {
	return geometry.Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}

// VisualBounds returns the axis-aligned box covering the element as
// painted, rotation included.
func (e *Element) VisualBounds() geometry.Rect {
	if e.Rotation == 0 {
		return e.Bounds()
	}
	local := geometry.Rect{Width: e.Width, Height: e.Height}
	return geometry.ElementTransform(e.Bounds(), e.Rotation).TransformRect(local)
}

// SetBounds replaces the element's box.
func (e *Element) SetBounds(r geometry.Rect) {
	e.X, e.Y, e.Width, e.Height = r.X, r.Y, r.Width, r.Height
}

// Clone returns a deep copy sharing no mutable state with e.
func (e *Element) Clone() *Element {
	out := *e
	if e.Payload != nil {
		out.Payload = e.Payload.clone()
	}
	return &out
}

// Payload is the kind-specific part of an element. The set of
// implementations is closed; Accept dispatches to the matching Visitor
// method so that adding a kind breaks every visitor at compile time.
type Payload interface {
	Kind() Kind
	Accept(v Visitor)
	clone() Payload
}

// Visitor handles each payload kind.
type Visitor interface {
	VisitText(p *TextPayload)
	VisitImage(p *ImagePayload)
	VisitShape(p *ShapePayload)
	VisitQR(p *QRPayload)
}

type TextPayload struct {
	Content         string
	FontSize        float64
	FontFamily      string
	FontWeight      string
	FontStyle       string
	TextDecoration  string
	TextAlign       TextAlign
	Color           string
	BackgroundColor string
	LineHeight      float64
}

func (p *TextPayload) Kind() Kind       { return KindText }
func (p *TextPayload) Accept(v Visitor) { v.VisitText(p) }
func (p *TextPayload) clone() Payload   { c := *p; return &c }

// Bold reports whether the weight should render with a bold face.
func (p *TextPayload) Bold() bool {
	switch p.FontWeight {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

// Italic reports whether the style should render with an italic face.
func (p *TextPayload) Italic() bool {
	return p.FontStyle == "italic" || p.FontStyle == "oblique"
}

// Underline reports whether the decoration draws an underline.
func (p *TextPayload) Underline() bool {
	return p.TextDecoration == "underline"
}

type ImagePayload struct {
	ImageURL string
}

func (p *ImagePayload) Kind() Kind       { return KindImage }
func (p *ImagePayload) Accept(v Visitor) { v.VisitImage(p) }
func (p *ImagePayload) clone() Payload   { c := *p; return &c }

type ShapePayload struct {
	ShapeType       ShapeType
	BackgroundColor string
	BorderColor     string
	BorderWidth     float64
	CornerRadius    float64
}

func (p *ShapePayload) Kind() Kind       { return KindShape }
func (p *ShapePayload) Accept(v Visitor) { v.VisitShape(p) }
func (p *ShapePayload) clone() Payload   { c := *p; return &c }

// QRPayload renders a generated QR code. ImageURL normally holds the QR
// sentinel; Value, when set, is encoded instead of the bound URL.
type QRPayload struct {
	ImageURL string
	Value    string
}

func (p *QRPayload) Kind() Kind       { return KindQR }
func (p *QRPayload) Accept(v Visitor) { v.VisitQR(p) }
func (p *QRPayload) clone() Payload   { c := *p; return &c }

// DefaultPayload returns the payload a freshly added element of kind starts with.
func DefaultPayload(kind Kind) Payload {
	switch kind {
	case KindText:
		return &TextPayload{
			Content:    "New Text",
			FontSize:   24,
			FontFamily: "Arial",
			FontWeight: "normal",
			FontStyle:  "normal",
			TextAlign:  AlignCenter,
			Color:      "#000000",
			LineHeight: 1.2,
		}
	case KindImage:
		return &ImagePayload{ImageURL: LogoSentinel}
	case KindShape:
		return &ShapePayload{
			ShapeType:       ShapeRectangle,
			BackgroundColor: "#e5e7eb",
			BorderColor:     "#9ca3af",
			BorderWidth:     2,
		}
	case KindQR:
		return &QRPayload{ImageURL: QRSentinel}
	}
	return nil
}

// Sentinel image URLs stand in for content that is bound at render time.
const (
	LogoSentinel          = "/placeholder-logo.png"
	LandscapeLogoSentinel = "/landscape-placeholder.svg"
	QRSentinel            = "/qr-placeholder.jpg"
)

// IsLogoSentinel reports whether url is one of the logo placeholder images.
func IsLogoSentinel(url string) bool {
	return url == LogoSentinel || url == LandscapeLogoSentinel
}

// IsQRSentinel reports whether url marks a QR code. Image elements saved
// with the QR toolbar button carry it instead of the qr type.
func IsQRSentinel(url string) bool {
	return url == QRSentinel || strings.Contains(url, "qr-placeholder")
}
