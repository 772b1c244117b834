package render

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

// painter executes draw commands onto an RGBA surface. One painter serves
// a single render and is not safe for concurrent use.
type painter struct {
	dst     *image.RGBA
	scale   float64
	base    geometry.Matrix2D
	images  map[string]image.Image
	faces   *faceCache
	ras     *vector.Rasterizer
	metrics *Metrics
}

func newPainter(dst *image.RGBA, scale float64, images map[string]image.Image, m *Metrics) *painter {
	b := dst.Bounds()
	return &painter{
		dst:     dst,
		scale:   scale,
		base:    geometry.Scale(scale, scale),
		images:  images,
		faces:   newFaceCache(),
		ras:     vector.NewRasterizer(b.Dx(), b.Dy()),
		metrics: m,
	}
}

func (p *painter) close() {
	p.faces.Close()
}

func (p *painter) paint(cmds []DrawCommand) {
	for _, cmd := range cmds {
		switch cmd.Op {
		case OpBackground:
			p.background(cmd)
		case OpPath:
			p.path(cmd)
		case OpText:
			p.text(cmd)
		case OpImage:
			p.image(cmd)
		case OpQR:
			p.qr(cmd)
		}
	}
}

func (p *painter) background(cmd DrawCommand) {
	if g := cmd.Gradient; g != nil {
		from, okFrom := ParseColor(g.From)
		to, okTo := ParseColor(g.To)
		if okFrom && okTo {
			p.gradient(from, to, g.Angle, cmd.Width, cmd.Height)
			return
		}
	}
	fill, ok := ParseColor(cmd.Fill)
	if !ok {
		fill = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	draw.Draw(p.dst, p.dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
}

// gradient fills the surface with a linear gradient using CSS angle
// semantics: 0deg points up and angles grow clockwise.
func (p *painter) gradient(from, to color.NRGBA, angle, w, h float64) {
	theta := angle * math.Pi / 180
	dx, dy := math.Sin(theta), -math.Cos(theta)
	length := math.Abs(w*dx) + math.Abs(h*dy)
	if length == 0 {
		length = 1
	}
	cx, cy := w/2, h/2

	b := p.dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		ly := (float64(y)+0.5)/p.scale - cy
		for x := b.Min.X; x < b.Max.X; x++ {
			lx := (float64(x)+0.5)/p.scale - cx
			t := (lx*dx+ly*dy)/length + 0.5
			p.dst.Set(x, y, blend(from, to, t))
		}
	}
}

func (p *painter) path(cmd DrawCommand) {
	m := p.base.Multiply(matrixOf(cmd))
	polys := flatten(cmd.Path, m)
	if len(polys) == 0 {
		return
	}

	if fill, ok := ParseColor(cmd.Fill); ok {
		p.resetRasterizer()
		for _, poly := range polys {
			p.addPolygon(poly)
		}
		p.ras.Draw(p.dst, p.dst.Bounds(), image.NewUniform(fill), image.Point{})
	}

	if cmd.StrokeWidth <= 0 {
		return
	}
	stroke, ok := ParseColor(cmd.Stroke)
	if !ok {
		return
	}
	half := cmd.StrokeWidth * p.scale / 2
	p.resetRasterizer()
	for _, poly := range polys {
		for i := 0; i+1 < len(poly); i++ {
			p.addSegment(poly[i], poly[i+1], half)
		}
		for _, pt := range poly {
			p.addPolygon(disc(pt, half))
		}
	}
	p.ras.Draw(p.dst, p.dst.Bounds(), image.NewUniform(stroke), image.Point{})
}

func (p *painter) resetRasterizer() {
	b := p.dst.Bounds()
	p.ras.Reset(b.Dx(), b.Dy())
}

// addPolygon adds a closed polygon with positive winding. The rasterizer
// sums signed coverage, so every sub-shape must wind the same way for
// overlaps to merge instead of cancelling.
func (p *painter) addPolygon(pts []geometry.Point) {
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) < 0 {
		rev := make([]geometry.Point, len(pts))
		for i, pt := range pts {
			rev[len(pts)-1-i] = pt
		}
		pts = rev
	}
	p.ras.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, pt := range pts[1:] {
		p.ras.LineTo(float32(pt.X), float32(pt.Y))
	}
	p.ras.ClosePath()
}

func (p *painter) addSegment(a, b geometry.Point, half float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*half, dx/l*half
	p.addPolygon([]geometry.Point{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	})
}

// disc approximates a round join.
func disc(c geometry.Point, r float64) []geometry.Point {
	const n = 12
	pts := make([]geometry.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = geometry.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

func signedArea(pts []geometry.Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

func (p *painter) text(cmd DrawCommand) {
	if cmd.Text == nil {
		return
	}
	lw := int(math.Ceil(cmd.Width * p.scale))
	lh := int(math.Ceil(cmd.Height * p.scale))
	if lw <= 0 || lh <= 0 {
		return
	}

	layer := image.NewRGBA(image.Rect(0, 0, lw, lh))
	if err := drawText(layer, cmd.Text, p.scale, p.faces); err != nil {
		slog.Warn("text render failed, skipping element", "element", cmd.ElementID, "error", err)
		return
	}

	m := p.base.
		Multiply(matrixOf(cmd)).
		Multiply(geometry.Scale(cmd.Width/float64(lw), cmd.Height/float64(lh)))
	p.composite(layer, layer.Bounds(), m, draw.BiLinear)
}

func (p *painter) image(cmd DrawCommand) {
	src, ok := p.images[cmd.Source]
	if !ok {
		return
	}
	sr := src.Bounds()
	if sr.Empty() {
		return
	}

	var local geometry.Matrix2D
	if cmd.Fit == FitContain {
		local = containMatrix(sr, cmd.Width, cmd.Height)
	} else {
		sr = coverCrop(sr, cmd.Width, cmd.Height)
		local = geometry.Scale(cmd.Width/float64(sr.Dx()), cmd.Height/float64(sr.Dy())).
			Multiply(geometry.Translate(-float64(sr.Min.X), -float64(sr.Min.Y)))
	}

	m := p.base.Multiply(matrixOf(cmd)).Multiply(local)
	p.composite(src, sr, m, draw.BiLinear)
}

func (p *painter) qr(cmd DrawCommand) {
	side := int(math.Ceil(min(cmd.Width, cmd.Height) * p.scale))
	img, err := QRImage(cmd.Source, side)
	if err != nil {
		slog.Warn("qr render failed, skipping element", "element", cmd.ElementID, "error", err)
		p.metrics.recordImageFailure()
		return
	}
	sr := img.Bounds()
	m := p.base.Multiply(matrixOf(cmd)).Multiply(containMatrix(sr, cmd.Width, cmd.Height))
	p.composite(img, sr, m, draw.NearestNeighbor)
}

// containMatrix maps sr into a w×h box, letterboxed and centered.
func containMatrix(sr image.Rectangle, w, h float64) geometry.Matrix2D {
	sw, sh := float64(sr.Dx()), float64(sr.Dy())
	fit := geometry.FitRect(
		geometry.Size{Width: sw, Height: sh},
		geometry.Rect{Width: w, Height: h},
		geometry.FitContain,
	)
	return geometry.Translate(fit.X, fit.Y).
		Multiply(geometry.Scale(fit.Width/sw, fit.Height/sh)).
		Multiply(geometry.Translate(-float64(sr.Min.X), -float64(sr.Min.Y)))
}

// coverCrop returns the centered part of sr with the aspect ratio of a w×h box.
func coverCrop(sr image.Rectangle, w, h float64) image.Rectangle {
	sw, sh := float64(sr.Dx()), float64(sr.Dy())
	s := max(w/sw, h/sh)
	cw := math.Min(sw, math.Max(1, math.Round(w/s)))
	ch := math.Min(sh, math.Max(1, math.Round(h/s)))
	x0 := sr.Min.X + int(math.Round((sw-cw)/2))
	y0 := sr.Min.Y + int(math.Round((sh-ch)/2))
	return image.Rect(x0, y0, x0+int(cw), y0+int(ch))
}

// composite draws sr of src through m, taking a direct copy when m is a
// whole-pixel translation.
func (p *painter) composite(src image.Image, sr image.Rectangle, m geometry.Matrix2D, interp draw.Interpolator) {
	if m.IsTranslation() && m[4] == math.Round(m[4]) && m[5] == math.Round(m[5]) {
		off := image.Pt(int(m[4]), int(m[5]))
		r := image.Rectangle{Min: sr.Min.Add(off), Max: sr.Max.Add(off)}
		draw.Draw(p.dst, r, src, sr.Min, draw.Over)
		return
	}
	interp.Transform(p.dst, m.Aff3(), src, sr, draw.Over, nil)
}
