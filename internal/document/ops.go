package document

import (
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

// DuplicateOffset is how far a duplicate is shifted from its source on both axes.
const DuplicateOffset = 20.0

// placement is where new elements of a kind start looking for free space.
type placement struct {
	startX, startY float64
	stepX          float64
	gapY           float64
}

var placements = map[Kind]placement{
	KindText:  {startX: 100, startY: 100, stepX: 30, gapY: 10},
	KindShape: {startX: 150, startY: 150, stepX: 30, gapY: 10},
	KindImage: {startX: 200, startY: 200, stepX: 30, gapY: 10},
	KindQR:    {startX: 200, startY: 200, stepX: 30, gapY: 10},
}

// DefaultSize returns the box a new element with payload gets.
func DefaultSize(p Payload) geometry.Size {
	switch pl := p.(type) {
	case *TextPayload:
		return geometry.Size{Width: 300, Height: max(50, pl.FontSize+20)}
	case *ImagePayload:
		return geometry.Size{Width: 200, Height: 150}
	case *ShapePayload:
		return geometry.Size{Width: 100, Height: 100}
	case *QRPayload:
		return geometry.Size{Width: 120, Height: 120}
	}
	return geometry.Size{Width: 100, Height: 100}
}

// AddParams customizes Add. Zero values fall back to the kind defaults.
type AddParams struct {
	Payload Payload
	Size    geometry.Size
	// Origin, when set, is where the search for free space starts.
	Origin *geometry.Point
}

// Add places a new element of kind without stacking it on existing ones,
// puts it on top and returns it.
func (d *Document) Add(kind Kind, params AddParams) *Element {
	payload := params.Payload
	if payload == nil || payload.Kind() != kind {
		payload = DefaultPayload(kind)
	}
	if payload == nil {
		return nil
	}

	size := params.Size
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize(payload)
	}
	size.Width = max(size.Width, MinElementSize)
	size.Height = max(size.Height, MinElementSize)

	existing := make([]geometry.Rect, len(d.Elements))
	for i, el := range d.Elements {
		existing[i] = el.Bounds()
	}
	pl := placements[kind]
	if o := params.Origin; o != nil {
		pl.startX, pl.startY = o.X, o.Y
	}
	pos := geometry.FindNonOverlappingPosition(size, existing,
		pl.startX, pl.startY, pl.stepX, size.Height+pl.gapY, geometry.DefaultPlacementAttempts)

	el := &Element{
		ID:      d.nextID(),
		X:       pos.X,
		Y:       pos.Y,
		Width:   size.Width,
		Height:  size.Height,
		ZIndex:  d.MaxZIndex() + 1,
		Payload: payload,
	}
	d.Elements = append(d.Elements, el)
	return el
}

// Update merges patch into the element with id. It reports false, changing
// nothing, when id is unknown.
func (d *Document) Update(id string, patch Patch) bool {
	el := d.Find(id)
	if el == nil {
		return false
	}
	patch.ApplyTo(el)
	return true
}

// Delete removes the element with id.
func (d *Document) Delete(id string) bool {
	i := d.indexOf(id)
	if i < 0 {
		return false
	}
	d.Elements = append(d.Elements[:i], d.Elements[i+1:]...)
	return true
}

// Duplicate clones the element with id, offsets the copy and puts it on top.
func (d *Document) Duplicate(id string) *Element {
	src := d.Find(id)
	if src == nil {
		return nil
	}
	dup := src.Clone()
	dup.ID = d.nextID()
	dup.X += DuplicateOffset
	dup.Y += DuplicateOffset
	dup.ZIndex = d.MaxZIndex() + 1
	d.Elements = append(d.Elements, dup)
	return dup
}

// BringToFront raises the element with id above every other element.
func (d *Document) BringToFront(id string) bool {
	el := d.Find(id)
	if el == nil {
		return false
	}
	el.ZIndex = d.MaxZIndex() + 1
	return true
}

// ReorderLayers applies a top-to-bottom ordering from the layer panel. The
// first id gets the highest zIndex (len) and the last gets 1. Unknown ids
// are skipped; elements missing from the list keep their zIndex.
func (d *Document) ReorderLayers(topToBottom []string) bool {
	ordered := make([]*Element, 0, len(topToBottom))
	seen := make(map[string]bool, len(topToBottom))
	for _, id := range topToBottom {
		if seen[id] {
			continue
		}
		seen[id] = true
		if el := d.Find(id); el != nil {
			ordered = append(ordered, el)
		}
	}
	if len(ordered) == 0 {
		return false
	}
	for i, el := range ordered {
		el.ZIndex = len(ordered) - i
	}
	return true
}

// ResizeCanvas changes the canvas size and scales every element
// proportionally so the composition keeps its layout.
func (d *Document) ResizeCanvas(size CanvasSize) bool {
	if !size.Valid() || size == d.Canvas {
		return false
	}
	if !d.Canvas.Valid() {
		d.Canvas = size
		return true
	}
	sx := float64(size.Width) / float64(d.Canvas.Width)
	sy := float64(size.Height) / float64(d.Canvas.Height)
	for _, el := range d.Elements {
		el.X *= sx
		el.Y *= sy
		el.Width *= sx
		el.Height *= sy
	}
	d.Canvas = size
	return true
}

// Rename sets the document name.
func (d *Document) Rename(name string) bool {
	if name == d.Name {
		return false
	}
	d.Name = name
	return true
}

// SetBackground replaces the canvas background.
func (d *Document) SetBackground(bg Background) {
	d.Background = bg.clone()
}
