package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
)

// HTMLOptions controls BuildHTML.
type HTMLOptions struct {
	// BaseURL resolves relative image references such as /assets/....
	BaseURL    string
	QRFallback string
}

var pageTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
{{- if .BaseURL}}
<base href="{{.BaseURL}}">
{{- end}}
<title>{{.Title}}</title>
<style>
html, body { margin: 0; padding: 0; }
@page { size: {{.Width}}px {{.Height}}px; margin: 0; }
.certificate { position: relative; overflow: hidden; width: {{.Width}}px; height: {{.Height}}px; }
.el { position: absolute; left: 0; top: 0; transform-origin: 0 0; box-sizing: border-box; }
.el img { display: block; width: 100%; height: 100%; }
.el svg { display: block; overflow: visible; }
</style>
</head>
<body>
<div class="certificate" style="{{.Background}}">
{{- range .Items}}
<div class="el" style="{{.Style}}">
{{- if .SVG}}{{.SVG}}{{end}}
{{- if .Src}}<img src="{{.Src}}" style="object-fit: {{.Fit}}" alt="">{{end}}
{{- range .Lines}}<div>{{.}}</div>{{end}}
</div>
{{- end}}
</div>
</body>
</html>
`))

type htmlPage struct {
	Title      string
	BaseURL    string
	Width      int
	Height     int
	Background template.CSS
	Items      []htmlItem
}

type htmlItem struct {
	Style template.CSS
	SVG   template.HTML
	Src   any
	Fit   string
	Lines []string
}

// BuildHTML lays doc out as a fixed-size HTML page for a headless browser.
// It compiles the same draw commands as the rasterizer so both exports
// agree on placement, paint order and placeholder resolution.
func BuildHTML(doc *document.Document, bindings placeholder.Bindings, opts HTMLOptions) (string, error) {
	cmds := render.CompileDrawCommands(doc, render.CompileOptions{Bindings: bindings, QRFallback: opts.QRFallback})

	page := htmlPage{
		Title:   doc.Name,
		BaseURL: opts.BaseURL,
		Width:   doc.Canvas.Width,
		Height:  doc.Canvas.Height,
	}
	for _, cmd := range cmds {
		if cmd.Op == render.OpBackground {
			page.Background = backgroundCSS(cmd)
			continue
		}
		item, ok := htmlItemFor(cmd)
		if ok {
			page.Items = append(page.Items, item)
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("execute html template: %w", err)
	}
	return buf.String(), nil
}

func htmlItemFor(cmd render.DrawCommand) (htmlItem, bool) {
	var style strings.Builder
	fmt.Fprintf(&style, "width: %spx; height: %spx; transform: %s;", num(cmd.Width), num(cmd.Height), matrixCSS(cmd.Transform))

	item := htmlItem{}
	switch cmd.Op {
	case render.OpPath:
		item.SVG = pathSVG(cmd)
	case render.OpImage:
		item.Src = imageSrc(cmd.Source)
		item.Fit = cmd.Fit
	case render.OpQR:
		png, err := render.QRPNG(cmd.Source, max(256, int(cmd.Width)*2))
		if err != nil {
			return htmlItem{}, false
		}
		item.Src = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		item.Fit = render.FitContain
	case render.OpText:
		textCSS(&style, cmd.Text)
		item.Lines = cmd.Text.Lines
	default:
		return htmlItem{}, false
	}
	item.Style = template.CSS(style.String())
	return item, true
}

// imageSrc lets data:image URLs through html/template's URL filter;
// everything else is escaped normally.
func imageSrc(src string) any {
	if strings.HasPrefix(src, "data:image/") {
		return template.URL(src)
	}
	return src
}

func backgroundCSS(cmd render.DrawCommand) template.CSS {
	if g := cmd.Gradient; g != nil {
		return template.CSS(fmt.Sprintf("background: linear-gradient(%sdeg, %s, %s);",
			num(g.Angle), cssColor(g.From, "transparent"), cssColor(g.To, "transparent")))
	}
	return template.CSS("background: " + cssColor(cmd.Fill, document.DefaultBackgroundColor) + ";")
}

func textCSS(style *strings.Builder, t *render.TextRun) {
	justify := "center"
	padding := "0"
	switch t.Align {
	case document.AlignLeft:
		justify, padding = "flex-start", "0 "+num(render.TextInset)+"px"
	case document.AlignRight:
		justify, padding = "flex-end", "0 "+num(render.TextInset)+"px"
	}

	fmt.Fprintf(style, " display: flex; flex-direction: column; justify-content: center; align-items: %s; padding: %s;", justify, padding)
	fmt.Fprintf(style, " white-space: pre; text-align: %s;", textAlign(t.Align))
	fmt.Fprintf(style, " font-size: %spx; line-height: %s;", num(t.FontSize), num(t.LineHeight))
	fmt.Fprintf(style, " font-family: '%s', sans-serif;", fontFamily(t.FontFamily))
	fmt.Fprintf(style, " color: %s;", cssColor(t.Color, "#000000"))
	if t.Bold {
		style.WriteString(" font-weight: bold;")
	}
	if t.Italic {
		style.WriteString(" font-style: italic;")
	}
	if t.Underline {
		style.WriteString(" text-decoration: underline;")
	}
	if t.Background != "" {
		fmt.Fprintf(style, " background: %s;", cssColor(t.Background, "transparent"))
	}
}

func textAlign(a document.TextAlign) string {
	switch a {
	case document.AlignLeft:
		return "left"
	case document.AlignRight:
		return "right"
	}
	return "center"
}

func pathSVG(cmd render.DrawCommand) template.HTML {
	fill := "none"
	if cmd.Fill != "" {
		fill = cssColor(cmd.Fill, "none")
	}
	stroke := ""
	if cmd.Stroke != "" && cmd.StrokeWidth > 0 {
		stroke = fmt.Sprintf(` stroke="%s" stroke-width="%s" stroke-linejoin="round"`, cssColor(cmd.Stroke, "none"), num(cmd.StrokeWidth))
	}
	return template.HTML(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s"><path d="%s" fill="%s"%s/></svg>`,
		num(cmd.Width), num(cmd.Height), pathData(cmd.Path), fill, stroke))
}

func pathData(path []render.PathCommand) string {
	var b strings.Builder
	for i, c := range path {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(c.Op)
		for _, p := range c.Pts {
			b.WriteByte(' ')
			b.WriteString(num(p))
		}
	}
	return b.String()
}

func matrixCSS(m []float64) string {
	if len(m) != 6 {
		return "none"
	}
	parts := make([]string, len(m))
	for i, v := range m {
		parts[i] = num(v)
	}
	return "matrix(" + strings.Join(parts, ", ") + ")"
}

// cssColor re-serializes a parsed color so untrusted input never reaches
// the stylesheet verbatim.
func cssColor(s, fallback string) string {
	c, ok := render.ParseColor(s)
	if !ok {
		return fallback
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, num(float64(c.A)/255))
}

func fontFamily(s string) string {
	out := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
	if out == "" {
		return "Arial"
	}
	return out
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
