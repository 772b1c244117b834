package engine

import (
	"fmt"
	"log/slog"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

// Mutations. Each one applies its change and then records a history entry;
// a stale id is logged and ignored.

// AddElement adds an element of kind with default content, selects it and
// returns its id.
func (e *Editor) AddElement(kind document.Kind) string {
	return e.AddElementWith(kind, document.AddParams{})
}

// AddElementWith adds an element with explicit payload and size.
func (e *Editor) AddElementWith(kind document.Kind, params document.AddParams) string {
	e.settleInteraction()
	el := e.doc.Add(kind, params)
	if el == nil {
		slog.Debug("add element: unknown kind", "kind", kind)
		return ""
	}
	e.ix.SelectedID = el.ID
	e.commit()
	return el.ID
}

// TextPreset is a preconfigured text element offered by the toolbar.
type TextPreset string

const (
	PresetTitle    TextPreset = "title"
	PresetSubtitle TextPreset = "subtitle"
	PresetBody     TextPreset = "body"
)

func (p TextPreset) payload() (*document.TextPayload, error) {
	t := document.DefaultPayload(document.KindText).(*document.TextPayload)
	switch p {
	case PresetTitle:
		t.Content, t.FontSize, t.FontWeight = "CERTIFICATE", 48, "bold"
	case PresetSubtitle:
		t.Content, t.FontSize = "of Completion", 28
	case PresetBody:
		t.Content, t.FontSize = "This certificate is awarded to", 18
	default:
		return nil, fmt.Errorf("unknown text preset %q", p)
	}
	return t, nil
}

// AddTextPreset adds one of the toolbar text presets.
func (e *Editor) AddTextPreset(p TextPreset) (string, error) {
	t, err := p.payload()
	if err != nil {
		return "", err
	}
	return e.AddElementWith(document.KindText, document.AddParams{Payload: t}), nil
}

// Defaults for field inserts.
var (
	fieldOrigin = geometry.Point{X: 100, Y: 200}
	fieldSize   = geometry.Size{Width: 300, Height: 40}
)

const fieldColor = "#1e40af"

// AddField adds a text element holding the {{field}} token.
func (e *Editor) AddField(field string) string {
	t := document.DefaultPayload(document.KindText).(*document.TextPayload)
	t.Content = "{{" + field + "}}"
	t.Color = fieldColor
	origin := fieldOrigin
	return e.AddElementWith(document.KindText, document.AddParams{Payload: t, Size: fieldSize, Origin: &origin})
}

// UpdateElement merges patch into the element with id.
func (e *Editor) UpdateElement(id string, patch document.Patch) bool {
	if !e.doc.Update(id, patch) {
		slog.Debug("update element: not found", "id", id)
		return false
	}
	if e.ix.Mode == ModeEditingText && id == e.ix.SelectedID && patch.Content != nil {
		e.ix.textOriginal = *patch.Content
	}
	e.commit()
	return true
}

// DeleteElement removes the element with id, clearing the selection if it
// was selected.
func (e *Editor) DeleteElement(id string) bool {
	if id == e.ix.SelectedID {
		e.settleInteraction()
	}
	if !e.doc.Delete(id) {
		slog.Debug("delete element: not found", "id", id)
		return false
	}
	if id == e.ix.SelectedID {
		e.ix.SelectedID = ""
	}
	e.commit()
	return true
}

// DeleteSelected removes the selected element.
func (e *Editor) DeleteSelected() bool {
	if e.ix.SelectedID == "" || e.ix.Mode == ModeEditingText {
		return false
	}
	return e.DeleteElement(e.ix.SelectedID)
}

// DuplicateElement clones the element with id, selects the copy and
// returns its id.
func (e *Editor) DuplicateElement(id string) string {
	e.settleInteraction()
	dup := e.doc.Duplicate(id)
	if dup == nil {
		slog.Debug("duplicate element: not found", "id", id)
		return ""
	}
	e.ix.SelectedID = dup.ID
	e.commit()
	return dup.ID
}

func (e *Editor) BringToFront(id string) bool {
	if !e.doc.BringToFront(id) {
		slog.Debug("bring to front: not found", "id", id)
		return false
	}
	e.commit()
	return true
}

// ReorderLayers applies a top-to-bottom order from the layer panel.
func (e *Editor) ReorderLayers(topToBottom []string) bool {
	if !e.doc.ReorderLayers(topToBottom) {
		slog.Debug("reorder layers: no known ids", "ids", topToBottom)
		return false
	}
	e.commit()
	return true
}

// ResizeCanvas rescales the canvas and every element on it.
func (e *Editor) ResizeCanvas(size document.CanvasSize) bool {
	e.settleInteraction()
	if !e.doc.ResizeCanvas(size) {
		return false
	}
	e.viewport.Logical = e.doc.Canvas.Size()
	e.commit()
	return true
}

// SetCanvasPreset resizes the canvas to a named preset.
func (e *Editor) SetCanvasPreset(name string) error {
	size, err := document.LookupPreset(name)
	if err != nil {
		return err
	}
	e.ResizeCanvas(size)
	return nil
}

func (e *Editor) Rename(name string) bool {
	if !e.doc.Rename(name) {
		return false
	}
	e.commit()
	return true
}

func (e *Editor) SetBackground(bg document.Background) {
	e.doc.SetBackground(bg)
	e.commit()
}

// Nudge moves the selected element by (dx, dy) canvas units.
func (e *Editor) Nudge(dx, dy float64) bool {
	el := e.selected()
	if el == nil || e.ix.Mode != ModeIdle {
		return false
	}
	return e.UpdateElement(el.ID, document.GeometryPatch(el.X+dx, el.Y+dy, el.Width, el.Height))
}

// SelectionBounds returns the box of the selected element.
func (e *Editor) SelectionBounds() (geometry.Rect, bool) {
	el := e.selected()
	if el == nil {
		return geometry.Rect{}, false
	}
	return el.Bounds(), true
}
