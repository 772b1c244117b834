package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

// A4 page dimensions in points, portrait.
const (
	A4Width  = 595.28
	A4Height = 841.89

	// PDFScale is the raster resolution used for PDF output, in pixels per
	// canvas unit.
	PDFScale = 2.0
)

// PageLayout is where a canvas lands on an A4 page.
type PageLayout struct {
	Landscape bool
	Page      geometry.Size
	Image     geometry.Rect
}

// FitToPage picks the A4 orientation matching the canvas and scales the
// canvas uniformly to fit, centered.
func FitToPage(canvas document.CanvasSize) PageLayout {
	layout := PageLayout{Page: geometry.Size{Width: A4Width, Height: A4Height}}
	if canvas.Width > canvas.Height {
		layout.Landscape = true
		layout.Page = geometry.Size{Width: A4Height, Height: A4Width}
	}
	layout.Image = geometry.FitRect(
		canvas.Size(),
		geometry.Rect{Width: layout.Page.Width, Height: layout.Page.Height},
		geometry.FitContain,
	)
	return layout
}

// WritePDF renders doc and writes it as a single-page A4 PDF.
func (r *Renderer) WritePDF(ctx context.Context, w io.Writer, doc *document.Document, opts Options) error {
	ctx, span := r.tracer.Start(ctx, "render.WritePDF")
	defer span.End()

	if opts.Scale == 0 {
		opts.Scale = PDFScale
	}
	img, err := r.Render(ctx, doc, opts)
	if err != nil {
		return err
	}
	png, err := EncodePNG(img)
	if err != nil {
		return err
	}
	return writePDFPage(w, doc.Name, FitToPage(doc.Canvas), png)
}

// RenderPDF is WritePDF into a byte slice.
func (r *Renderer) RenderPDF(ctx context.Context, doc *document.Document, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WritePDF(ctx, &buf, doc, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePDFPage(w io.Writer, title string, layout PageLayout, png []byte) error {
	orientation := "P"
	if layout.Landscape {
		orientation = "L"
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: A4Width, Ht: A4Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.SetCreator("certcanvas", false)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(png))
	pdf.ImageOptions("certificate",
		layout.Image.X, layout.Image.Y, layout.Image.Width, layout.Image.Height,
		false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
