package geometry

// Point is a position in canvas-space units unless stated otherwise.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect represents an axis-aligned box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains checks if a point is inside the rect (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Overlaps reports whether the open interiors of r and o intersect.
// Rects that only share an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width &&
		r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height &&
		r.Y+r.Height > o.Y
}

// RectsOverlap is the free-function form of Rect.Overlaps.
func RectsOverlap(a, b Rect) bool {
	return a.Overlaps(b)
}

// Center returns the center point of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Size returns the rect's dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Fit describes how a source aspect ratio is mapped into a box.
type Fit int

const (
	// FitCover scales uniformly until the box is fully covered; overflow is cropped.
	FitCover Fit = iota
	// FitContain scales uniformly until the source fits entirely inside the box.
	FitContain
)

// FitRect places a src-sized area inside box according to fit, centered.
// For FitCover the returned rect may extend past the box.
func FitRect(src Size, box Rect, fit Fit) Rect {
	if src.Width <= 0 || src.Height <= 0 || box.IsEmpty() {
		return box
	}
	sx := box.Width / src.Width
	sy := box.Height / src.Height
	s := min(sx, sy)
	if fit == FitCover {
		s = max(sx, sy)
	}
	w := src.Width * s
	h := src.Height * s
	return Rect{
		X:      box.X + (box.Width-w)/2,
		Y:      box.Y + (box.Height-h)/2,
		Width:  w,
		Height: h,
	}
}
