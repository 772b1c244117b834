package export

import (
	"context"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
)

// PDFRenderer produces a PDF for doc with placeholders resolved from bindings.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, doc *document.Document, bindings placeholder.Bindings) ([]byte, error)
}

// RasterRenderer rasterizes the certificate in-process and places it on
// an A4 page.
type RasterRenderer struct {
	renderer *render.Renderer
	scale    float64
}

// NewRasterRenderer renders at scale pixels per canvas unit; zero or less
// uses render.PDFScale.
func NewRasterRenderer(r *render.Renderer, scale float64) *RasterRenderer {
	if scale <= 0 {
		scale = render.PDFScale
	}
	return &RasterRenderer{renderer: r, scale: scale}
}

func (r *RasterRenderer) RenderPDF(ctx context.Context, doc *document.Document, bindings placeholder.Bindings) ([]byte, error) {
	return r.renderer.RenderPDF(ctx, doc, render.Options{Bindings: bindings, Scale: r.scale})
}
