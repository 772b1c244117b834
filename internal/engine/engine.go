// Package engine is the editing session: it owns the document, its undo
// history and the pointer interaction state, and turns user input into
// document mutations.
package engine

import (
	"encoding/json"
	"log/slog"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
	"github.com/certcanvas/certcanvas/backend-go/internal/history"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
)

// Editor is one editing session. It is driven from a single goroutine (the
// UI event loop or a websocket read pump) and is not safe for concurrent
// use; only Job completion may happen elsewhere.
type Editor struct {
	doc      *document.Document
	history  *history.Manager
	ix       Interaction
	viewport geometry.Viewport
	capture  PointerCapture

	// preview bindings applied to draw commands only
	bindings   placeholder.Bindings
	qrFallback string

	jobs jobGuard
}

type Option func(*Editor)

// WithPointerCapture installs the host hook that routes pointer events to
// the editor for the duration of a gesture.
func WithPointerCapture(c PointerCapture) Option {
	return func(e *Editor) { e.capture = c }
}

// WithQRFallback sets the value previews encode in unbound QR elements.
func WithQRFallback(v string) Option {
	return func(e *Editor) { e.qrFallback = v }
}

// NewEditor starts a session on doc, or on an empty default document when
// doc is nil.
func NewEditor(doc *document.Document, opts ...Option) *Editor {
	e := &Editor{capture: noCapture{}}
	for _, opt := range opts {
		opt(e)
	}
	e.Load(doc)
	return e
}

// --- Lifecycle ---

// Load replaces the document and starts a fresh history.
func (e *Editor) Load(doc *document.Document) {
	e.endGestureScope()
	if doc == nil {
		doc = document.New("Untitled Certificate", document.DefaultCanvasSize)
	}
	e.doc = doc
	e.history = history.NewManager(history.Capture(doc), history.DefaultLimit)
	e.ix = Interaction{}
	e.viewport = geometry.NewViewport(doc.Canvas.Size())
}

// LoadJSON hydrates a document from its wire format.
func (e *Editor) LoadJSON(data []byte) error {
	doc := document.New("", document.DefaultCanvasSize)
	if err := json.Unmarshal(data, doc); err != nil {
		return err
	}
	e.Load(doc)
	return nil
}

// LoadSampleDocument loads the built-in sample certificate.
func (e *Editor) LoadSampleDocument() {
	e.Load(document.NewSampleDocument())
}

// Document returns the live document. Callers must not mutate it.
func (e *Editor) Document() *document.Document {
	return e.doc
}

// Interaction returns a copy of the interaction state.
func (e *Editor) Interaction() Interaction {
	return e.ix
}

// SetViewport records where the canvas is displayed on screen so pointer
// positions can be converted to canvas units.
func (e *Editor) SetViewport(screen geometry.Rect) {
	e.viewport = geometry.Viewport{Screen: screen, Logical: e.doc.Canvas.Size()}
}

// SetPreviewBindings sets the sample data substituted into draw commands.
// The document itself keeps its tokens.
func (e *Editor) SetPreviewBindings(b placeholder.Bindings) {
	e.bindings = b
}

// --- History ---

// commit records the current document as a new history entry. Every
// mutation calls it after the change has been applied.
func (e *Editor) commit() {
	e.history.Push(history.Capture(e.doc))
}

// Undo restores the previous snapshot. An open text edit is committed
// first so it can be undone as one step.
func (e *Editor) Undo() bool {
	e.settleInteraction()
	s, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

// Redo re-applies the next snapshot.
func (e *Editor) Redo() bool {
	e.settleInteraction()
	s, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

func (e *Editor) restore(s history.Snapshot) {
	s.Restore(e.doc)
	e.viewport.Logical = e.doc.Canvas.Size()
	e.ix.SelectedID = ""
}

func (e *Editor) CanUndo() bool { return e.history.CanUndo() }
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// settleInteraction ends whatever the pointer is doing so the document can
// be replaced underneath it.
func (e *Editor) settleInteraction() {
	switch e.ix.Mode {
	case ModeEditingText:
		e.EndTextEdit()
	case ModeDragging, ModeResizing:
		e.CancelGesture()
	}
}

// --- Queries ---

// Compile returns the draw commands for the current document with the
// preview bindings applied.
func (e *Editor) Compile() []render.DrawCommand {
	return render.CompileDrawCommands(e.doc, render.CompileOptions{
		Bindings:   e.bindings,
		QRFallback: e.qrFallback,
	})
}

// Render returns the draw commands as JSON for the browser canvas.
func (e *Editor) Render() string {
	result, err := render.DrawCommandsToJSON(e.Compile())
	if err != nil {
		slog.Error("serialize draw commands", "error", err)
	}
	return result
}

// Fields returns the placeholder fields the document uses.
func (e *Editor) Fields() []placeholder.Field {
	return placeholder.Describe(placeholder.ExtractFields(e.doc))
}

// State is the editor state the UI renders chrome from.
type State struct {
	DocumentName    string              `json:"documentName"`
	CanvasSize      document.CanvasSize `json:"canvasSize"`
	Preset          string              `json:"preset"`
	Mode            string              `json:"mode"`
	SelectedID      string              `json:"selectedId,omitempty"`
	Selection       *geometry.Rect      `json:"selectionBounds,omitempty"`
	// SelectionExtent is the painted footprint of the selection, which
	// differs from Selection once the element is rotated.
	SelectionExtent *geometry.Rect      `json:"selectionExtent,omitempty"`
	Guides          Guides              `json:"guides"`
	CanUndo         bool                `json:"canUndo"`
	CanRedo         bool                `json:"canRedo"`
	Layers          []Layer             `json:"layers"`
	Fields          []placeholder.Field `json:"fields"`
	Saving          bool                `json:"saving"`
	Exporting       bool                `json:"exporting"`
	Background      document.Background `json:"background"`
}

// Layer is one row of the layer panel, top-most first.
type Layer struct {
	ID     string        `json:"id"`
	Kind   document.Kind `json:"kind"`
	ZIndex int           `json:"zIndex"`
	Label  string        `json:"label"`
}

// State snapshots the session for the UI.
func (e *Editor) State() State {
	s := State{
		DocumentName: e.doc.Name,
		CanvasSize:   e.doc.Canvas,
		Preset:       document.PresetFor(e.doc.Canvas),
		Mode:         e.ix.Mode.String(),
		SelectedID:   e.ix.SelectedID,
		Guides:       e.ix.Guides,
		CanUndo:      e.history.CanUndo(),
		CanRedo:      e.history.CanRedo(),
		Fields:       e.Fields(),
		Saving:       e.jobs.busy(JobSave),
		Exporting:    e.jobs.busy(JobExport),
		Background:   e.doc.Background,
	}
	if el := e.selected(); el != nil {
		b, ext := el.Bounds(), el.VisualBounds()
		s.Selection = &b
		s.SelectionExtent = &ext
	}
	for _, el := range e.doc.LayerOrder() {
		s.Layers = append(s.Layers, Layer{ID: el.ID, Kind: el.Kind(), ZIndex: el.ZIndex, Label: layerLabel(el)})
	}
	return s
}

// StateJSON is State serialized for the browser.
func (e *Editor) StateJSON() string {
	data, err := json.Marshal(e.State())
	if err != nil {
		slog.Error("serialize editor state", "error", err)
		return "{}"
	}
	return string(data)
}

// DocumentJSON returns the document in its wire format.
func (e *Editor) DocumentJSON() string {
	data, err := json.Marshal(e.doc)
	if err != nil {
		slog.Error("serialize document", "error", err)
		return "{}"
	}
	return string(data)
}

func layerLabel(el *document.Element) string {
	if t, ok := el.Payload.(*document.TextPayload); ok {
		label := t.Content
		if r := []rune(label); len(r) > 24 {
			label = string(r[:24]) + "…"
		}
		return label
	}
	return string(el.Kind())
}
