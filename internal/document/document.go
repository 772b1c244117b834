package document

import (
	"cmp"
	"slices"

	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

// CanvasSize is the logical size of the certificate in canvas units.
type CanvasSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size converts to geometry units.
func (c CanvasSize) Size() geometry.Size {
	return geometry.Size{Width: float64(c.Width), Height: float64(c.Height)}
}

// Valid reports whether both dimensions are positive.
func (c CanvasSize) Valid() bool {
	return c.Width > 0 && c.Height > 0
}

// Gradient is a two-stop linear gradient. Angle follows CSS conventions:
// 0 points up, 90 points right.
type Gradient struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Angle float64 `json:"angle"`
}

// Background is painted before any element. A non-nil Gradient wins over Color.
type Background struct {
	Color    string    `json:"color,omitempty"`
	Gradient *Gradient `json:"gradient,omitempty"`
}

const DefaultBackgroundColor = "#ffffff"

// Document is the single source of truth for one editing session.
// Elements are kept in insertion order; paint order comes from ZIndex.
type Document struct {
	Name       string
	Canvas     CanvasSize
	Background Background
	Elements   []*Element

	newID func() string
}

// New creates an empty document.
func New(name string, canvas CanvasSize) *Document {
	if !canvas.Valid() {
		canvas = DefaultCanvasSize
	}
	return &Document{
		Name:       name,
		Canvas:     canvas,
		Background: Background{Color: DefaultBackgroundColor},
		newID:      typeid.NewElementID,
	}
}

// SetIDGenerator overrides how new element ids are produced.
func (d *Document) SetIDGenerator(gen func() string) {
	d.newID = gen
}

func (d *Document) nextID() string {
	if d.newID == nil {
		d.newID = typeid.NewElementID
	}
	return d.newID()
}

// Find returns the element with id, or nil.
func (d *Document) Find(id string) *Element {
	for _, el := range d.Elements {
		if el.ID == id {
			return el
		}
	}
	return nil
}

func (d *Document) indexOf(id string) int {
	return slices.IndexFunc(d.Elements, func(el *Element) bool { return el.ID == id })
}

// MaxZIndex returns the highest zIndex in use, or 0 for an empty document.
func (d *Document) MaxZIndex() int {
	maxZ := 0
	for i, el := range d.Elements {
		if i == 0 || el.ZIndex > maxZ {
			maxZ = el.ZIndex
		}
	}
	return maxZ
}

// PaintOrder returns the elements sorted by ascending zIndex. Ties keep
// insertion order.
func (d *Document) PaintOrder() []*Element {
	out := slices.Clone(d.Elements)
	slices.SortStableFunc(out, func(a, b *Element) int {
		return cmp.Compare(a.ZIndex, b.ZIndex)
	})
	return out
}

// LayerOrder returns the elements top-most first, the order a layer panel lists them.
func (d *Document) LayerOrder() []*Element {
	out := d.PaintOrder()
	slices.Reverse(out)
	return out
}

// HitTest returns the topmost element whose box contains p, or nil.
func (d *Document) HitTest(p geometry.Point) *Element {
	order := d.PaintOrder()
	for i := len(order) - 1; i >= 0; i-- {
		el := order[i]
		if hitElement(el, p) {
			return el
		}
	}
	return nil
}

func hitElement(el *Element, p geometry.Point) bool {
	if el.Rotation == 0 {
		return el.Bounds().Contains(p)
	}
	local := geometry.ElementTransform(el.Bounds(), el.Rotation).Invert().TransformPoint(p)
	return geometry.Rect{Width: el.Width, Height: el.Height}.Contains(local)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Name:       d.Name,
		Canvas:     d.Canvas,
		Background: d.Background.clone(),
		Elements:   CloneElements(d.Elements),
		newID:      d.newID,
	}
	return out
}

func (b Background) clone() Background {
	if b.Gradient != nil {
		g := *b.Gradient
		b.Gradient = &g
	}
	return b
}

// CloneElements deep-copies an element slice.
func CloneElements(elements []*Element) []*Element {
	if elements == nil {
		return nil
	}
	out := make([]*Element, len(elements))
	for i, el := range elements {
		out[i] = el.Clone()
	}
	return out
}
