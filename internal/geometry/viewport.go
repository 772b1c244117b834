package geometry

// Viewport relates the on-screen rectangle the canvas occupies to the
// document's logical canvas size. Zoomed displays have a screen rect that
// differs from the logical size.
type Viewport struct {
	Screen  Rect `json:"screen"`
	Logical Size `json:"logical"`
}

// NewViewport returns a 1:1 viewport for the given logical size.
func NewViewport(logical Size) Viewport {
	return Viewport{
		Screen:  Rect{Width: logical.Width, Height: logical.Height},
		Logical: logical,
	}
}

// ScreenToCanvas converts a pointer position in screen pixels to canvas units.
func (v Viewport) ScreenToCanvas(p Point) Point {
	return ScreenToCanvas(p, v.Screen, v.Logical)
}

// ScreenToCanvas maps pointer into logical canvas space:
// (pointer - rectOrigin) * (logical / rectSize). A degenerate screen rect
// leaves the offset unscaled.
func ScreenToCanvas(pointer Point, screen Rect, logical Size) Point {
	sx, sy := 1.0, 1.0
	if screen.Width > 0 {
		sx = logical.Width / screen.Width
	}
	if screen.Height > 0 {
		sy = logical.Height / screen.Height
	}
	return Point{
		X: (pointer.X - screen.X) * sx,
		Y: (pointer.Y - screen.Y) * sy,
	}
}
