// Package render turns certificate documents into draw commands and
// executes them into raster images and PDFs.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/draw"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
)

var (
	ErrInvalidCanvas = errors.New("invalid canvas size")
	ErrInvalidScale  = errors.New("render scale must be positive")
)

const (
	// ThumbnailWidth bounds the width of generated template thumbnails.
	ThumbnailWidth = 480
	// MaxSurfacePixels caps the surface a single render may allocate.
	MaxSurfacePixels = 64 << 20

	defaultConcurrency = 4
)

// Options controls a single render.
type Options struct {
	Bindings placeholder.Bindings
	// Scale is output pixels per canvas unit. Zero means 1.
	Scale float64
}

// Renderer rasterizes documents. It is safe for concurrent use.
type Renderer struct {
	loader      Loader
	qrFallback  string
	concurrency int
	metrics     *Metrics
	tracer      trace.Tracer
}

type Option func(*Renderer)

// WithQRFallback sets the value QR elements encode when no binding supplies one.
func WithQRFallback(v string) Option {
	return func(r *Renderer) { r.qrFallback = v }
}

// WithConcurrency bounds parallel image fetches per render.
func WithConcurrency(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

func New(loader Loader, opts ...Option) *Renderer {
	r := &Renderer{
		loader:      loader,
		concurrency: defaultConcurrency,
		tracer:      otel.Tracer("certcanvas/render"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QRFallback returns the configured fallback QR value.
func (r *Renderer) QRFallback() string {
	return r.qrFallback
}

// Compile resolves bindings and returns the draw commands for doc.
func (r *Renderer) Compile(doc *document.Document, bindings placeholder.Bindings) []DrawCommand {
	return CompileDrawCommands(doc, CompileOptions{Bindings: bindings, QRFallback: r.qrFallback})
}

// Render rasterizes doc with placeholders resolved from opts.Bindings.
// Elements whose images cannot be loaded are skipped; the render still
// completes.
func (r *Renderer) Render(ctx context.Context, doc *document.Document, opts Options) (img *image.RGBA, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "render.Render")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.metrics.recordRender(start, err)
	}()

	if doc == nil || !doc.Canvas.Valid() {
		return nil, ErrInvalidCanvas
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	if scale < 0 || math.IsNaN(scale) {
		return nil, ErrInvalidScale
	}

	w := int(math.Ceil(float64(doc.Canvas.Width) * scale))
	h := int(math.Ceil(float64(doc.Canvas.Height) * scale))
	if w <= 0 || h <= 0 || w*h > MaxSurfacePixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrInvalidCanvas, w, h)
	}
	span.SetAttributes(
		attribute.Int("render.width", w),
		attribute.Int("render.height", h),
		attribute.Int("render.elements", len(doc.Elements)),
	)

	cmds := r.Compile(doc, opts.Bindings)
	images := r.loadImages(ctx, cmds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	p := newPainter(dst, scale, images, r.metrics)
	defer p.close()
	p.paint(cmds)
	return dst, nil
}

// RenderPNG renders doc and encodes it as PNG.
func (r *Renderer) RenderPNG(ctx context.Context, doc *document.Document, opts Options) ([]byte, error) {
	img, err := r.Render(ctx, doc, opts)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// Thumbnail renders doc with unresolved placeholders and scales it down so
// that it is at most maxWidth pixels wide.
func (r *Renderer) Thumbnail(ctx context.Context, doc *document.Document, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = ThumbnailWidth
	}
	img, err := r.Render(ctx, doc, Options{})
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > maxWidth {
		h := max(1, int(math.Round(float64(b.Dy())*float64(maxWidth)/float64(b.Dx()))))
		small := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
		draw.CatmullRom.Scale(small, small.Bounds(), img, b, draw.Src, nil)
		img = small
	}
	return EncodePNG(img)
}

// ThumbnailDataURL is Thumbnail encoded as a PNG data URL.
func (r *Renderer) ThumbnailDataURL(ctx context.Context, doc *document.Document) (string, error) {
	data, err := r.Thumbnail(ctx, doc, ThumbnailWidth)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
