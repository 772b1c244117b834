package document

import "fmt"

// Preset is a named canvas size offered in the size picker.
type Preset struct {
	Name  string     `json:"name"`
	Label string     `json:"label"`
	Size  CanvasSize `json:"size"`
}

// PresetCustom names a user-entered width/height pair.
const PresetCustom = "custom"

var Presets = []Preset{
	{Name: "a4-portrait", Label: "A4 Portrait", Size: CanvasSize{Width: 595, Height: 842}},
	{Name: "a4-landscape", Label: "A4 Landscape", Size: CanvasSize{Width: 842, Height: 595}},
	{Name: "letter-portrait", Label: "US Letter Portrait", Size: CanvasSize{Width: 612, Height: 792}},
	{Name: "letter-landscape", Label: "US Letter Landscape", Size: CanvasSize{Width: 792, Height: 612}},
	{Name: "square", Label: "Square", Size: CanvasSize{Width: 800, Height: 800}},
}

// DefaultCanvasSize is A4 landscape, the usual certificate orientation.
var DefaultCanvasSize = CanvasSize{Width: 842, Height: 595}

// LookupPreset returns the size registered under name.
func LookupPreset(name string) (CanvasSize, error) {
	for _, p := range Presets {
		if p.Name == name {
			return p.Size, nil
		}
	}
	return CanvasSize{}, fmt.Errorf("unknown canvas preset %q", name)
}

// PresetFor returns the preset name matching size, or PresetCustom.
func PresetFor(size CanvasSize) string {
	for _, p := range Presets {
		if p.Size == size {
			return p.Name
		}
	}
	return PresetCustom
}
