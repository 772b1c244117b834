//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"syscall/js"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/engine"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
)

var (
	editor   *engine.Editor
	onChange js.Value
	jobs     = map[string]*engine.Job{}
)

func main() {
	editor = engine.NewEditor(nil, engine.WithPointerCapture(documentCapture{}))

	// Create the editor API object
	api := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	api.Set("loadDocument", js.FuncOf(loadDocument))
	api.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	api.Set("newDocument", js.FuncOf(newDocument))
	api.Set("setViewport", js.FuncOf(setViewport))
	api.Set("pointerDown", js.FuncOf(pointer(editor.PointerDown)))
	api.Set("pointerMove", js.FuncOf(pointer(editor.PointerMove)))
	api.Set("pointerUp", js.FuncOf(pointer(editor.PointerUp)))
	api.Set("doubleClick", js.FuncOf(doubleClick))
	api.Set("beginResize", js.FuncOf(beginResize))
	api.Set("cancelGesture", js.FuncOf(cancelGesture))
	api.Set("select", js.FuncOf(selectElement))
	api.Set("addElement", js.FuncOf(addElement))
	api.Set("addTextPreset", js.FuncOf(addTextPreset))
	api.Set("addField", js.FuncOf(addField))
	api.Set("updateElement", js.FuncOf(updateElement))
	api.Set("deleteElement", js.FuncOf(deleteElement))
	api.Set("duplicateElement", js.FuncOf(duplicateElement))
	api.Set("bringToFront", js.FuncOf(bringToFront))
	api.Set("reorderLayers", js.FuncOf(reorderLayers))
	api.Set("nudge", js.FuncOf(nudge))
	api.Set("editText", js.FuncOf(editText))
	api.Set("endTextEdit", js.FuncOf(endTextEdit))
	api.Set("resizeCanvas", js.FuncOf(resizeCanvas))
	api.Set("setCanvasPreset", js.FuncOf(setCanvasPreset))
	api.Set("rename", js.FuncOf(rename))
	api.Set("setBackground", js.FuncOf(setBackground))
	api.Set("setPreviewBindings", js.FuncOf(setPreviewBindings))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))
	api.Set("beginSave", js.FuncOf(beginJob(editor.BeginSave)))
	api.Set("beginExport", js.FuncOf(beginJob(editor.BeginExport)))
	api.Set("finishJob", js.FuncOf(finishJob))
	api.Set("onChange", js.FuncOf(setChangeListener))

	// --- Queries (frontend ← editor) ---
	api.Set("render", js.FuncOf(render))
	api.Set("getState", js.FuncOf(getState))
	api.Set("getDocument", js.FuncOf(getDocument))
	api.Set("getFields", js.FuncOf(getFields))

	js.Global().Set("certcanvasEditor", api)

	// Signal that WASM is ready
	js.Global().Set("certcanvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// documentCapture listens on the whole document while a drag or resize is
// active, so the gesture keeps tracking when the pointer leaves the canvas.
// The page only needs to forward pointerdown; Escape cancels.
type documentCapture struct{}

func (documentCapture) Capture() func() {
	doc := js.Global().Get("document")

	move := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		editor.PointerMove(eventPoint(args))
		notify()
		return nil
	})
	up := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		editor.PointerUp(eventPoint(args))
		notify()
		return nil
	})
	key := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) > 0 && args[0].Get("key").String() == "Escape" {
			editor.CancelGesture()
			notify()
		}
		return nil
	})

	doc.Call("addEventListener", "pointermove", move)
	doc.Call("addEventListener", "pointerup", up)
	doc.Call("addEventListener", "keydown", key)

	return func() {
		doc.Call("removeEventListener", "pointermove", move)
		doc.Call("removeEventListener", "pointerup", up)
		doc.Call("removeEventListener", "keydown", key)
		move.Release()
		up.Release()
		key.Release()
	}
}

func eventPoint(args []js.Value) geometry.Point {
	if len(args) < 1 {
		return geometry.Point{}
	}
	return geometry.Point{X: args[0].Get("clientX").Float(), Y: args[0].Get("clientY").Float()}
}

func notify() {
	if onChange.Type() == js.TypeFunction {
		onChange.Invoke(editor.StateJSON())
	}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func decodeArg(args []js.Value, i int, v any) error {
	if len(args) <= i {
		return errMissingArg
	}
	return json.Unmarshal([]byte(args[i].String()), v)
}

var errMissingArg = errors.New("missing argument")

func stringArg(args []js.Value, i int) string {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail("missing document JSON")
	}
	if err := editor.LoadJSON([]byte(args[0].String())); err != nil {
		return fail(err.Error())
	}
	return ok()
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	editor.LoadSampleDocument()
	return ok()
}

func newDocument(this js.Value, args []js.Value) interface{} {
	editor.Load(nil)
	return ok()
}

func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return nil
	}
	editor.SetViewport(geometry.Rect{
		X:      args[0].Float(),
		Y:      args[1].Float(),
		Width:  args[2].Float(),
		Height: args[3].Float(),
	})
	return nil
}

func pointer(fn func(geometry.Point)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 2 {
			return nil
		}
		fn(geometry.Point{X: args[0].Float(), Y: args[1].Float()})
		return nil
	}
}

func doubleClick(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(editor.DoubleClick(geometry.Point{X: args[0].Float(), Y: args[1].Float()}))
}

func beginResize(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	editor.BeginResize(engine.Handle(args[0].String()), geometry.Point{X: args[1].Float(), Y: args[2].Float()})
	return nil
}

func cancelGesture(this js.Value, args []js.Value) interface{} {
	editor.CancelGesture()
	return nil
}

func selectElement(this js.Value, args []js.Value) interface{} {
	editor.Select(stringArg(args, 0))
	return nil
}

func addElement(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.AddElement(document.Kind(stringArg(args, 0))))
}

func addTextPreset(this js.Value, args []js.Value) interface{} {
	id, err := editor.AddTextPreset(engine.TextPreset(stringArg(args, 0)))
	if err != nil {
		return fail(err.Error())
	}
	return js.ValueOf(id)
}

func addField(this js.Value, args []js.Value) interface{} {
	field := stringArg(args, 0)
	if field == "" {
		return fail("missing field")
	}
	return js.ValueOf(editor.AddField(field))
}

func updateElement(this js.Value, args []js.Value) interface{} {
	var patch document.Patch
	if err := decodeArg(args, 1, &patch); err != nil {
		return fail("invalid patch: " + err.Error())
	}
	return js.ValueOf(editor.UpdateElement(stringArg(args, 0), patch))
}

func deleteElement(this js.Value, args []js.Value) interface{} {
	if id := stringArg(args, 0); id != "" {
		return js.ValueOf(editor.DeleteElement(id))
	}
	return js.ValueOf(editor.DeleteSelected())
}

func duplicateElement(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.DuplicateElement(stringArg(args, 0)))
}

func bringToFront(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.BringToFront(stringArg(args, 0)))
}

func reorderLayers(this js.Value, args []js.Value) interface{} {
	var order []string
	if err := decodeArg(args, 0, &order); err != nil {
		return fail("invalid layer order: " + err.Error())
	}
	return js.ValueOf(editor.ReorderLayers(order))
}

func nudge(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(editor.Nudge(args[0].Float(), args[1].Float()))
}

func editText(this js.Value, args []js.Value) interface{} {
	editor.EditText(stringArg(args, 0))
	return nil
}

func endTextEdit(this js.Value, args []js.Value) interface{} {
	editor.EndTextEdit()
	return nil
}

func resizeCanvas(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(editor.ResizeCanvas(document.CanvasSize{Width: args[0].Int(), Height: args[1].Int()}))
}

func setCanvasPreset(this js.Value, args []js.Value) interface{} {
	if err := editor.SetCanvasPreset(stringArg(args, 0)); err != nil {
		return fail(err.Error())
	}
	return ok()
}

func rename(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.Rename(stringArg(args, 0)))
}

func setBackground(this js.Value, args []js.Value) interface{} {
	var bg document.Background
	if err := decodeArg(args, 0, &bg); err != nil {
		return fail("invalid background: " + err.Error())
	}
	editor.SetBackground(bg)
	return ok()
}

func setPreviewBindings(this js.Value, args []js.Value) interface{} {
	var bindings placeholder.Bindings
	if len(args) > 0 && args[0].Type() == js.TypeString {
		if err := json.Unmarshal([]byte(args[0].String()), &bindings); err != nil {
			return fail("invalid bindings: " + err.Error())
		}
	}
	editor.SetPreviewBindings(bindings)
	return ok()
}

func undo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.Redo())
}

// beginJob hands the page a document copy to save or export. The page
// calls finishJob(kind) when its request settles.
func beginJob(begin func() (*engine.Job, error)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		job, err := begin()
		if err != nil {
			return fail(err.Error())
		}
		data, err := json.Marshal(job.Document)
		if err != nil {
			job.Done()
			return fail(err.Error())
		}
		kind := job.Kind.String()
		jobs[kind] = job
		return js.ValueOf(map[string]interface{}{"kind": kind, "document": string(data)})
	}
}

func finishJob(this js.Value, args []js.Value) interface{} {
	kind := stringArg(args, 0)
	if job, found := jobs[kind]; found {
		job.Done()
		delete(jobs, kind)
	}
	return nil
}

func setChangeListener(this js.Value, args []js.Value) interface{} {
	if len(args) > 0 {
		onChange = args[0]
	}
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.Render())
}

func getState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.StateJSON())
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(editor.DocumentJSON())
}

func getFields(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(editor.Fields())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}
