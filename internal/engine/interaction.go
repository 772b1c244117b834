package engine

import (
	"log/slog"
	"math"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeDragging
	ModeResizing
	ModeEditingText
)

func (m Mode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	case ModeEditingText:
		return "editingText"
	default:
		return "idle"
	}
}

// Handle identifies one of the eight resize handles around a selection.
type Handle string

const (
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleE  Handle = "e"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
)

var Handles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

const (
	// HandleRadius is the hit distance around a handle, in canvas units.
	HandleRadius = 6.0
	// GuideThreshold is how close an element center must be to a canvas
	// centerline for the guide to show.
	GuideThreshold = 2.0
)

func (h Handle) movesLeft() bool   { return h == HandleW || h == HandleNW || h == HandleSW }
func (h Handle) movesRight() bool  { return h == HandleE || h == HandleNE || h == HandleSE }
func (h Handle) movesTop() bool    { return h == HandleN || h == HandleNW || h == HandleNE }
func (h Handle) movesBottom() bool { return h == HandleS || h == HandleSW || h == HandleSE }

// position returns the handle's location on a box in box-local units.
func (h Handle) position(w, ht float64) geometry.Point {
	p := geometry.Point{X: w / 2, Y: ht / 2}
	if h.movesLeft() {
		p.X = 0
	}
	if h.movesRight() {
		p.X = w
	}
	if h.movesTop() {
		p.Y = 0
	}
	if h.movesBottom() {
		p.Y = ht
	}
	return p
}

// Guides are the center-alignment hints shown while moving an element.
type Guides struct {
	Vertical   bool `json:"vertical"`
	Horizontal bool `json:"horizontal"`
}

// Interaction is the transient pointer state of a session. Selected with
// ModeIdle is the "selected" state; no selection with ModeIdle is idle.
type Interaction struct {
	Mode       Mode
	SelectedID string
	Handle     Handle
	Guides     Guides

	startPointer geometry.Point
	offset       geometry.Point
	startRect    geometry.Rect
	textOriginal string
	release      func()
}

// PointerCapture routes document-wide pointer events to the editor while a
// gesture is active. Capture is called when a drag or resize starts; the
// returned release func is called exactly once when it ends.
type PointerCapture interface {
	Capture() (release func())
}

// PointerCaptureFunc adapts a function to PointerCapture.
type PointerCaptureFunc func() (release func())

func (f PointerCaptureFunc) Capture() func() { return f() }

type noCapture struct{}

func (noCapture) Capture() func() { return func() {} }

func (e *Editor) selected() *document.Element {
	if e.ix.SelectedID == "" {
		return nil
	}
	return e.doc.Find(e.ix.SelectedID)
}

// Select makes id the only selected element. An unknown id clears the selection.
func (e *Editor) Select(id string) {
	e.settleInteraction()
	if id != "" && e.doc.Find(id) == nil {
		slog.Debug("select: element not found", "id", id)
		id = ""
	}
	e.ix.SelectedID = id
}

func (e *Editor) ClearSelection() {
	e.Select("")
}

// --- Pointer input; positions are screen pixels ---

// PointerDown starts a resize when it lands on a handle of the selection,
// otherwise selects the topmost element under the pointer and arms a drag.
// Empty canvas clears the selection.
func (e *Editor) PointerDown(screen geometry.Point) {
	p := e.viewport.ScreenToCanvas(screen)

	if e.ix.Mode == ModeEditingText {
		if el := e.selected(); el != nil && e.doc.HitTest(p) == el {
			return
		}
		e.EndTextEdit()
	}
	if e.ix.Mode != ModeIdle {
		e.CancelGesture()
	}

	if h, ok := e.handleAt(p); ok {
		e.beginResize(h, p)
		return
	}

	el := e.doc.HitTest(p)
	if el == nil {
		e.ix.SelectedID = ""
		return
	}
	e.ix.SelectedID = el.ID
	e.beginDrag(el, p)
}

// PointerMove updates the active gesture, if any.
func (e *Editor) PointerMove(screen geometry.Point) {
	if e.ix.Mode != ModeDragging && e.ix.Mode != ModeResizing {
		return
	}
	el := e.selected()
	if el == nil {
		slog.Debug("pointer move: element gone, ending gesture", "id", e.ix.SelectedID)
		e.endGestureScope()
		e.ix.Mode = ModeIdle
		e.ix.SelectedID = ""
		return
	}

	p := e.viewport.ScreenToCanvas(screen)
	if e.ix.Mode == ModeDragging {
		el.X = p.X - e.ix.offset.X
		el.Y = p.Y - e.ix.offset.Y
	} else {
		el.SetBounds(ResizeRect(e.ix.startRect, e.ix.Handle, p.Sub(e.ix.startPointer)))
	}
	e.ix.Guides = e.guidesFor(el)
}

// PointerUp ends the active gesture and records one history entry if the
// element actually moved or changed size.
func (e *Editor) PointerUp(screen geometry.Point) {
	if e.ix.Mode != ModeDragging && e.ix.Mode != ModeResizing {
		return
	}
	e.PointerMove(screen)
	e.endGestureScope()
	e.ix.Mode = ModeIdle
	e.ix.Guides = Guides{}
	if el := e.selected(); el != nil && el.Bounds() != e.ix.startRect {
		e.commit()
	}
}

// CancelGesture aborts a drag or resize, putting the element back where it
// started, or abandons a text edit. Nothing is recorded in history.
func (e *Editor) CancelGesture() {
	switch e.ix.Mode {
	case ModeDragging, ModeResizing:
		if el := e.selected(); el != nil {
			el.SetBounds(e.ix.startRect)
		}
		e.endGestureScope()
	case ModeEditingText:
		if t := e.selectedText(); t != nil {
			t.Content = e.ix.textOriginal
		}
	}
	e.ix.Mode = ModeIdle
	e.ix.Guides = Guides{}
}

// BeginResize starts a resize from an explicit handle, for hosts that
// hit-test handles themselves.
func (e *Editor) BeginResize(h Handle, screen geometry.Point) {
	if e.selected() == nil {
		slog.Debug("begin resize: nothing selected", "id", e.ix.SelectedID)
		return
	}
	e.settleInteraction()
	e.beginResize(h, e.viewport.ScreenToCanvas(screen))
}

func (e *Editor) beginDrag(el *document.Element, p geometry.Point) {
	e.ix.Mode = ModeDragging
	e.ix.startPointer = p
	e.ix.startRect = el.Bounds()
	e.ix.offset = geometry.Point{X: p.X - el.X, Y: p.Y - el.Y}
	e.acquireGestureScope()
}

func (e *Editor) beginResize(h Handle, p geometry.Point) {
	el := e.selected()
	e.ix.Mode = ModeResizing
	e.ix.Handle = h
	e.ix.startPointer = p
	e.ix.startRect = el.Bounds()
	e.acquireGestureScope()
}

func (e *Editor) acquireGestureScope() {
	e.endGestureScope()
	e.ix.release = e.capture.Capture()
}

func (e *Editor) endGestureScope() {
	if e.ix.release != nil {
		release := e.ix.release
		e.ix.release = nil
		release()
	}
}

// handleAt hit-tests the resize handles of the selected element.
func (e *Editor) handleAt(p geometry.Point) (Handle, bool) {
	el := e.selected()
	if el == nil {
		return "", false
	}
	local := geometry.ElementTransform(el.Bounds(), el.Rotation).Invert().TransformPoint(p)
	for _, h := range Handles {
		hp := h.position(el.Width, el.Height)
		if math.Abs(local.X-hp.X) <= HandleRadius && math.Abs(local.Y-hp.Y) <= HandleRadius {
			return h, true
		}
	}
	return "", false
}

func (e *Editor) guidesFor(el *document.Element) Guides {
	c := el.Bounds().Center()
	return Guides{
		Vertical:   math.Abs(c.X-float64(e.doc.Canvas.Width)/2) < GuideThreshold,
		Horizontal: math.Abs(c.Y-float64(e.doc.Canvas.Height)/2) < GuideThreshold,
	}
}

// ResizeRect applies a handle drag of delta to start. Edges opposite the
// handle stay fixed; width and height never drop below the minimum size.
func ResizeRect(start geometry.Rect, h Handle, delta geometry.Point) geometry.Rect {
	r := start
	if h.movesRight() {
		r.Width = math.Max(document.MinElementSize, start.Width+delta.X)
	}
	if h.movesLeft() {
		r.Width = math.Max(document.MinElementSize, start.Width-delta.X)
		r.X = start.X + (start.Width - r.Width)
	}
	if h.movesBottom() {
		r.Height = math.Max(document.MinElementSize, start.Height+delta.Y)
	}
	if h.movesTop() {
		r.Height = math.Max(document.MinElementSize, start.Height-delta.Y)
		r.Y = start.Y + (start.Height - r.Height)
	}
	return r
}

// --- Inline text editing ---

func (e *Editor) selectedText() *document.TextPayload {
	el := e.selected()
	if el == nil {
		return nil
	}
	t, _ := el.Payload.(*document.TextPayload)
	return t
}

// BeginTextEdit enters inline editing on a text element, selecting it.
func (e *Editor) BeginTextEdit(id string) bool {
	el := e.doc.Find(id)
	if el == nil {
		slog.Debug("begin text edit: element not found", "id", id)
		return false
	}
	t, ok := el.Payload.(*document.TextPayload)
	if !ok {
		return false
	}
	e.settleInteraction()
	e.ix.SelectedID = id
	e.ix.Mode = ModeEditingText
	e.ix.textOriginal = t.Content
	return true
}

// DoubleClick starts inline editing on the text element under the pointer.
func (e *Editor) DoubleClick(screen geometry.Point) bool {
	el := e.doc.HitTest(e.viewport.ScreenToCanvas(screen))
	if el == nil || el.Kind() != document.KindText {
		return false
	}
	return e.BeginTextEdit(el.ID)
}

// EditText updates the live content of the element being edited. The change
// is recorded in history only when the edit ends.
func (e *Editor) EditText(content string) {
	if e.ix.Mode != ModeEditingText {
		return
	}
	t := e.selectedText()
	if t == nil {
		slog.Debug("edit text: element gone", "id", e.ix.SelectedID)
		e.ix.Mode = ModeIdle
		return
	}
	t.Content = content
}

// EndTextEdit leaves inline editing (blur) and commits the text as one
// history entry if it changed.
func (e *Editor) EndTextEdit() {
	if e.ix.Mode != ModeEditingText {
		return
	}
	e.ix.Mode = ModeIdle
	if t := e.selectedText(); t != nil && t.Content != e.ix.textOriginal {
		e.commit()
	}
}
