package render

import (
	"encoding/json"
	"strings"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
)

type Op string

const (
	OpBackground Op = "background"
	OpPath       Op = "path"
	OpText       Op = "text"
	OpImage      Op = "image"
	OpQR         Op = "qr"
)

// Fit modes for image commands.
const (
	FitCover   = "cover"
	FitContain = "contain"
)

// TextInset is the horizontal padding applied to left and right aligned text.
const TextInset = 8.0

// DrawCommand is one paint operation. The browser executes these on a
// Canvas2D context and the rasterizer executes the same list server-side.
// Geometry is in element-local units; Transform maps local to canvas units.
type DrawCommand struct {
	Op        Op        `json:"op"`
	ElementID string    `json:"elementId,omitempty"`
	Transform []float64 `json:"transform,omitempty"`
	Width     float64   `json:"width,omitempty"`
	Height    float64   `json:"height,omitempty"`

	Path        []PathCommand `json:"path,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`

	Gradient *document.Gradient `json:"gradient,omitempty"`

	Text *TextRun `json:"text,omitempty"`

	// Source is the image URL for OpImage and the encoded value for OpQR.
	Source string `json:"source,omitempty"`
	Fit    string `json:"fit,omitempty"`
}

// TextRun is resolved text ready to paint.
type TextRun struct {
	Lines      []string           `json:"lines"`
	FontSize   float64            `json:"fontSize"`
	FontFamily string             `json:"fontFamily"`
	Bold       bool               `json:"bold,omitempty"`
	Italic     bool               `json:"italic,omitempty"`
	Underline  bool               `json:"underline,omitempty"`
	Align      document.TextAlign `json:"align"`
	AnchorX    float64            `json:"anchorX"`
	Color      string             `json:"color"`
	Background string             `json:"background,omitempty"`
	LineHeight float64            `json:"lineHeight"`
}

// CompileOptions controls how placeholders are resolved during compilation.
type CompileOptions struct {
	Bindings   placeholder.Bindings
	QRFallback string
}

// CompileDrawCommands generates the command list for doc: the background
// first, then one command per element in paint order (back to front).
func CompileDrawCommands(doc *document.Document, opts CompileOptions) []DrawCommand {
	if doc == nil {
		return nil
	}

	commands := []DrawCommand{backgroundCommand(doc)}
	c := &compiler{
		bindings: opts.Bindings,
		qrValue:  opts.Bindings.QRValue(opts.QRFallback),
	}
	for _, el := range doc.PaintOrder() {
		if el.Payload == nil || el.Width <= 0 || el.Height <= 0 {
			continue
		}
		c.cmd = DrawCommand{
			ElementID: el.ID,
			Transform: geometry.ElementTransform(el.Bounds(), el.Rotation).ToSlice(),
			Width:     el.Width,
			Height:    el.Height,
		}
		c.emit = true
		el.Payload.Accept(c)
		if c.emit {
			commands = append(commands, c.cmd)
		}
	}
	return commands
}

func backgroundCommand(doc *document.Document) DrawCommand {
	cmd := DrawCommand{
		Op:     OpBackground,
		Width:  float64(doc.Canvas.Width),
		Height: float64(doc.Canvas.Height),
		Fill:   doc.Background.Color,
	}
	if g := doc.Background.Gradient; g != nil {
		gc := *g
		cmd.Gradient = &gc
	}
	if cmd.Fill == "" && cmd.Gradient == nil {
		cmd.Fill = document.DefaultBackgroundColor
	}
	return cmd
}

type compiler struct {
	bindings placeholder.Bindings
	qrValue  string
	cmd      DrawCommand
	emit     bool
}

func (c *compiler) VisitText(p *document.TextPayload) {
	content := placeholder.Substitute(p.Content, c.bindings)

	lineHeight := p.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1.2
	}

	c.cmd.Op = OpText
	c.cmd.Text = &TextRun{
		Lines:      strings.Split(content, "\n"),
		FontSize:   p.FontSize,
		FontFamily: p.FontFamily,
		Bold:       p.Bold(),
		Italic:     p.Italic(),
		Underline:  p.Underline(),
		Align:      p.TextAlign,
		AnchorX:    anchorFor(p.TextAlign, c.cmd.Width),
		Color:      p.Color,
		Background: p.BackgroundColor,
		LineHeight: lineHeight,
	}
}

// anchorFor returns the x coordinate text lines are aligned against.
func anchorFor(align document.TextAlign, width float64) float64 {
	switch align {
	case document.AlignLeft:
		return TextInset
	case document.AlignRight:
		return width - TextInset
	default:
		return width / 2
	}
}

func (c *compiler) VisitImage(p *document.ImagePayload) {
	if document.IsQRSentinel(p.ImageURL) {
		c.VisitQR(&document.QRPayload{ImageURL: p.ImageURL})
		return
	}
	url, isLogo := placeholder.ResolveImage(p.ImageURL, c.bindings)
	if url == "" {
		c.emit = false
		return
	}
	c.cmd.Op = OpImage
	c.cmd.Source = url
	c.cmd.Fit = FitCover
	if isLogo {
		c.cmd.Fit = FitContain
	}
}

func (c *compiler) VisitShape(p *document.ShapePayload) {
	w, h := c.cmd.Width, c.cmd.Height
	c.cmd.Op = OpPath
	switch p.ShapeType {
	case document.ShapeCircle:
		c.cmd.Path = EllipsePath(w, h)
	case document.ShapeStar:
		c.cmd.Path = StarPath(w, h)
	default:
		c.cmd.Path = RectPath(w, h, p.CornerRadius)
	}
	c.cmd.Fill = p.BackgroundColor
	if p.BorderWidth > 0 && p.BorderColor != "" {
		c.cmd.Stroke = p.BorderColor
		c.cmd.StrokeWidth = p.BorderWidth
	}
}

func (c *compiler) VisitQR(p *document.QRPayload) {
	value := placeholder.ResolveQR(p, c.bindings, c.qrValue)
	if value == "" {
		c.emit = false
		return
	}
	c.cmd.Op = OpQR
	c.cmd.Source = value
	c.cmd.Fit = FitContain
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

func matrixOf(cmd DrawCommand) geometry.Matrix2D {
	if len(cmd.Transform) != 6 {
		return geometry.Identity()
	}
	var m geometry.Matrix2D
	copy(m[:], cmd.Transform)
	return m
}
