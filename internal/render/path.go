package render

import (
	"encoding/json"
	"math"

	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

// PathCommand is a single path segment in element-local coordinates.
// On the wire it matches Canvas2D: ["M", x, y], ["L", x, y],
// ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand struct {
	Op  byte
	Pts []float64
}

func (c PathCommand) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, 1+len(c.Pts))
	out = append(out, string(c.Op))
	for _, p := range c.Pts {
		out = append(out, p)
	}
	return json.Marshal(out)
}

func moveTo(x, y float64) PathCommand { return PathCommand{Op: 'M', Pts: []float64{x, y}} }
func lineTo(x, y float64) PathCommand { return PathCommand{Op: 'L', Pts: []float64{x, y}} }
func closePath() PathCommand           { return PathCommand{Op: 'Z'} }
func cubeTo(x1, y1, x2, y2, x, y float64) PathCommand {
	return PathCommand{Op: 'C', Pts: []float64{x1, y1, x2, y2, x, y}}
}

// kappa approximates a quarter circle with one cubic bezier.
const kappa = 0.5522847498

// RectPath returns a w by h rectangle with optional rounded corners.
func RectPath(w, h, radius float64) []PathCommand {
	r := min(radius, w/2, h/2)
	if r <= 0 {
		return []PathCommand{
			moveTo(0, 0),
			lineTo(w, 0),
			lineTo(w, h),
			lineTo(0, h),
			closePath(),
		}
	}
	k := r * kappa
	return []PathCommand{
		moveTo(r, 0),
		lineTo(w-r, 0),
		cubeTo(w-r+k, 0, w, r-k, w, r),
		lineTo(w, h-r),
		cubeTo(w, h-r+k, w-r+k, h, w-r, h),
		lineTo(r, h),
		cubeTo(r-k, h, 0, h-r+k, 0, h-r),
		lineTo(0, r),
		cubeTo(0, r-k, r-k, 0, r, 0),
		closePath(),
	}
}

// EllipsePath returns the ellipse inscribed in a w by h box.
func EllipsePath(w, h float64) []PathCommand {
	rx, ry := w/2, h/2
	cx, cy := rx, ry
	kx, ky := rx*kappa, ry*kappa

	return []PathCommand{
		moveTo(cx+rx, cy),
		cubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry),
		cubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy),
		cubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry),
		cubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy),
		closePath(),
	}
}

// Star geometry: ten alternating vertices, apex up.
const (
	StarPoints      = 10
	StarInnerRatio  = 0.4
	starStartRadian = -math.Pi / 2
)

// StarVertices returns the star polygon centered in a w by h box. The
// outer radius is half the smaller side.
func StarVertices(w, h float64) []geometry.Point {
	cx, cy := w/2, h/2
	outer := min(w, h) / 2
	inner := outer * StarInnerRatio

	pts := make([]geometry.Point, StarPoints)
	for i := range pts {
		angle := float64(i)*math.Pi/5 + starStartRadian
		r := outer
		if i%2 == 1 {
			r = inner
		}
		pts[i] = geometry.Point{X: cx + math.Cos(angle)*r, Y: cy + math.Sin(angle)*r}
	}
	return pts
}

// StarPath returns StarVertices as a closed path.
func StarPath(w, h float64) []PathCommand {
	pts := StarVertices(w, h)
	out := make([]PathCommand, 0, len(pts)+1)
	for i, p := range pts {
		if i == 0 {
			out = append(out, moveTo(p.X, p.Y))
		} else {
			out = append(out, lineTo(p.X, p.Y))
		}
	}
	return append(out, closePath())
}

// flatten converts a path into closed polylines, approximating curves
// with line segments. Points are transformed by m.
func flatten(path []PathCommand, m geometry.Matrix2D) [][]geometry.Point {
	const curveSteps = 16

	var (
		polys [][]geometry.Point
		cur   []geometry.Point
		last  geometry.Point
		start geometry.Point
	)
	flush := func() {
		if len(cur) > 1 {
			polys = append(polys, cur)
		}
		cur = nil
	}

	for _, c := range path {
		switch c.Op {
		case 'M':
			flush()
			last = geometry.Point{X: c.Pts[0], Y: c.Pts[1]}
			start = last
			cur = append(cur, m.TransformPoint(last))
		case 'L':
			last = geometry.Point{X: c.Pts[0], Y: c.Pts[1]}
			cur = append(cur, m.TransformPoint(last))
		case 'C':
			p0 := last
			p1 := geometry.Point{X: c.Pts[0], Y: c.Pts[1]}
			p2 := geometry.Point{X: c.Pts[2], Y: c.Pts[3]}
			p3 := geometry.Point{X: c.Pts[4], Y: c.Pts[5]}
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				cur = append(cur, m.TransformPoint(cubicAt(p0, p1, p2, p3, t)))
			}
			last = p3
		case 'Z':
			if last != start {
				cur = append(cur, m.TransformPoint(start))
			}
			flush()
			last = start
		}
	}
	flush()
	return polys
}

func cubicAt(p0, p1, p2, p3 geometry.Point, t float64) geometry.Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return geometry.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
