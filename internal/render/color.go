package render

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"gray":    "#808080",
	"grey":    "#808080",
	"silver":  "#c0c0c0",
	"gold":    "#ffd700",
	"navy":    "#000080",
	"maroon":  "#800000",
	"teal":    "#008080",
	"olive":   "#808000",
	"pink":    "#ffc0cb",
	"brown":   "#a52a2a",
	"crimson": "#dc143c",
	"indigo":  "#4b0082",
}

// ParseColor parses a CSS color: #rgb, #rrggbb, #rrggbbaa, rgb(), rgba()
// or a common color name. It reports false for empty, "transparent" and
// anything it cannot read; callers treat that as "paint nothing".
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "transparent", "none":
		return color.NRGBA{}, false
	}
	if hex, ok := namedColors[s]; ok {
		s = hex
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}
	if strings.HasPrefix(s, "rgb") {
		return parseRGBFunc(s)
	}
	return color.NRGBA{}, false
}

func parseHex(s string) (color.NRGBA, bool) {
	alpha := uint8(255)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, false
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, false
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, true
}

func parseRGBFunc(s string) (color.NRGBA, bool) {
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, false
	}
	parts := strings.FieldsFunc(s[open+1:end], func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, false
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(parts[i])
		if !ok {
			return color.NRGBA{}, false
		}
		ch[i] = v
	}
	alpha := uint8(255)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSuffix(parts[3], "%"), 64)
		if err != nil {
			return color.NRGBA{}, false
		}
		if strings.HasSuffix(parts[3], "%") {
			a /= 100
		}
		alpha = uint8(math.Round(clamp01(a) * 255))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, true
}

func parseChannel(s string) (uint8, bool) {
	pct := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		v = v * 255 / 100
	}
	return uint8(math.Round(math.Max(0, math.Min(255, v)))), true
}

// blend interpolates between two colors in sRGB space, matching how
// browsers paint CSS gradients.
func blend(from, to color.NRGBA, t float64) color.NRGBA {
	a := colorful.Color{R: float64(from.R) / 255, G: float64(from.G) / 255, B: float64(from.B) / 255}
	b := colorful.Color{R: float64(to.R) / 255, G: float64(to.G) / 255, B: float64(to.B) / 255}
	r, g, bl := a.BlendRgb(b, clamp01(t)).Clamped().RGB255()
	alpha := float64(from.A) + (float64(to.A)-float64(from.A))*clamp01(t)
	return color.NRGBA{R: r, G: g, B: bl, A: uint8(math.Round(alpha))}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
