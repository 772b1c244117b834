package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var fontData = map[fontKey][]byte{
	{mono: false, bold: false, italic: false}: goregular.TTF,
	{mono: false, bold: true, italic: false}:  gobold.TTF,
	{mono: false, bold: false, italic: true}:  goitalic.TTF,
	{mono: false, bold: true, italic: true}:   gobolditalic.TTF,
	{mono: true, bold: false, italic: false}:  gomono.TTF,
	{mono: true, bold: true, italic: false}:   gomonobold.TTF,
	{mono: true, bold: false, italic: true}:   gomonoitalic.TTF,
	{mono: true, bold: true, italic: true}:    gomonobolditalic.TTF,
}

var (
	parsedFontsOnce sync.Once
	parsedFonts     map[fontKey]*opentype.Font
	parsedFontsErr  error
)

// loadFonts parses the embedded Go font family once per process.
func loadFonts() (map[fontKey]*opentype.Font, error) {
	parsedFontsOnce.Do(func() {
		parsedFonts = make(map[fontKey]*opentype.Font, len(fontData))
		for k, ttf := range fontData {
			f, err := opentype.Parse(ttf)
			if err != nil {
				parsedFontsErr = fmt.Errorf("parse font %+v: %w", k, err)
				return
			}
			parsedFonts[k] = f
		}
	})
	return parsedFonts, parsedFontsErr
}

// isMonospace maps CSS family names onto the two embedded families.
func isMonospace(family string) bool {
	f := strings.ToLower(family)
	return strings.Contains(f, "mono") || strings.Contains(f, "courier") || strings.Contains(f, "consol")
}

type faceKey struct {
	fontKey
	size float64
}

// faceCache hands out font faces for one render. Faces keep glyph buffers
// and are not safe for concurrent use, so caches are never shared.
type faceCache struct {
	faces map[faceKey]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[faceKey]font.Face)}
}

func (c *faceCache) face(run *TextRun, size float64) (font.Face, error) {
	key := faceKey{
		fontKey: fontKey{mono: isMonospace(run.FontFamily), bold: run.Bold, italic: run.Italic},
		size:    math.Round(size*4) / 4,
	}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}

	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	f, err := opentype.NewFace(fonts[key.fontKey], &opentype.FaceOptions{
		Size:    key.size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	c.faces[key] = f
	return f, nil
}

func (c *faceCache) Close() {
	for _, f := range c.faces {
		f.Close()
	}
}

// drawText paints run into layer, which covers the element box at scale
// pixels per canvas unit. The line block is vertically centered; each line
// is anchored at AnchorX according to its alignment.
func drawText(layer *image.RGBA, run *TextRun, scale float64, faces *faceCache) error {
	if bg, ok := ParseColor(run.Background); ok {
		draw.Draw(layer, layer.Bounds(), image.NewUniform(bg), image.Point{}, draw.Over)
	}

	fg, ok := ParseColor(run.Color)
	if !ok {
		fg = color.NRGBA{A: 255}
	}
	size := run.FontSize * scale
	if size <= 0 {
		return nil
	}
	face, err := faces.face(run, size)
	if err != nil {
		return err
	}

	m := face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64
	lineBox := size * run.LineHeight
	height := float64(layer.Bounds().Dy())
	top := height/2 - lineBox*float64(len(run.Lines))/2

	src := image.NewUniform(fg)
	for i, line := range run.Lines {
		if line == "" {
			continue
		}
		width := float64(font.MeasureString(face, line)) / 64
		x := run.AnchorX * scale
		switch run.Align {
		case document.AlignLeft:
		case document.AlignRight:
			x -= width
		default:
			x -= width / 2
		}
		baseline := top + (float64(i)+0.5)*lineBox + (ascent-descent)/2

		d := font.Drawer{
			Dst:  layer,
			Src:  src,
			Face: face,
			Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(baseline * 64))},
		}
		d.DrawString(line)

		if run.Underline {
			thickness := math.Max(1, size/16)
			y := baseline + math.Max(1, size*0.08)
			r := image.Rect(
				int(math.Floor(x)), int(math.Floor(y)),
				int(math.Ceil(x+width)), int(math.Ceil(y+thickness)),
			)
			draw.Draw(layer, r, src, image.Point{}, draw.Over)
		}
	}
	return nil
}
