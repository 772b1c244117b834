package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
)

type captureCounter struct {
	acquired int
	released int
}

func (c *captureCounter) Capture() func() {
	c.acquired++
	return func() { c.released++ }
}

func newTestEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	doc := document.New("Test", document.DefaultCanvasSize)
	n := 0
	doc.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("el_%d", n)
	})
	return NewEditor(doc, opts...)
}

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

// addShape adds a default 100x100 shape, which lands at (150,150) on an
// empty canvas.
func addShape(t *testing.T, e *Editor) *document.Element {
	t.Helper()
	id := e.AddElement(document.KindShape)
	el := e.Document().Find(id)
	require.NotNil(t, el)
	return el
}

func TestUndoRedoRoundTrip(t *testing.T) {
	e := newTestEditor(t)
	assert.False(t, e.Undo(), "undo at origin is a no-op")

	a := e.AddElement(document.KindText)
	b := e.AddElement(document.KindShape)
	require.Len(t, e.Document().Elements, 2)

	require.True(t, e.Undo())
	require.Len(t, e.Document().Elements, 1)
	assert.Equal(t, a, e.Document().Elements[0].ID)

	require.True(t, e.Undo())
	assert.Empty(t, e.Document().Elements)

	assert.False(t, e.Undo())
	assert.Empty(t, e.Document().Elements)

	require.True(t, e.Redo())
	require.True(t, e.Redo())
	require.Len(t, e.Document().Elements, 2)
	assert.Equal(t, b, e.Document().Elements[1].ID)
	assert.False(t, e.Redo())
}

func TestHistoryIsIndependentOfLiveDocument(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)
	e.UpdateElement(el.ID, document.GeometryPatch(10, 10, 50, 50))

	// mutate the live element without going through the editor
	e.Document().Find(el.ID).X = 999

	require.True(t, e.Undo())
	got := e.Document().Find(el.ID)
	require.NotNil(t, got)
	assert.Equal(t, 150.0, got.X)
}

func TestAddSelectsNewElement(t *testing.T) {
	e := newTestEditor(t)
	id := e.AddElement(document.KindQR)
	assert.Equal(t, id, e.Interaction().SelectedID)
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
}

func TestDragMovesElementAndCommitsOnce(t *testing.T) {
	capture := &captureCounter{}
	e := newTestEditor(t, WithPointerCapture(capture))
	el := addShape(t, e)
	before := e.history.Len()

	e.PointerDown(pt(160, 160))
	assert.Equal(t, ModeDragging, e.Interaction().Mode)
	assert.Equal(t, 1, capture.acquired)

	e.PointerMove(pt(180, 170))
	e.PointerMove(pt(210, 190))
	assert.Equal(t, 200.0, el.X)
	assert.Equal(t, 180.0, el.Y)
	assert.Equal(t, before, e.history.Len(), "no snapshot mid-gesture")

	e.PointerUp(pt(210, 190))
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
	assert.Equal(t, el.ID, e.Interaction().SelectedID)
	assert.Equal(t, before+1, e.history.Len())
	assert.Equal(t, 1, capture.released)

	require.True(t, e.Undo())
	moved := e.Document().Find(el.ID)
	assert.Equal(t, 150.0, moved.X)
	assert.Equal(t, 150.0, moved.Y)
}

func TestClickWithoutMoveDoesNotCommit(t *testing.T) {
	e := newTestEditor(t)
	addShape(t, e)
	before := e.history.Len()

	e.PointerDown(pt(200, 200))
	e.PointerUp(pt(200, 200))
	assert.Equal(t, before, e.history.Len())
}

func TestDragUsesCanvasUnitsUnderZoom(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)

	// canvas shown at half size
	e.SetViewport(geometry.Rect{Width: 421, Height: 297.5})

	e.PointerDown(pt(80, 80)) // canvas (160,160)
	e.PointerMove(pt(90, 80)) // canvas (180,160)
	e.PointerUp(pt(90, 80))
	assert.Equal(t, 170.0, el.X)
	assert.Equal(t, 150.0, el.Y)
}

func TestDragOutsideCanvasIsAllowed(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)

	e.PointerDown(pt(160, 160))
	e.PointerUp(pt(-100, -300))
	assert.Equal(t, -110.0, el.X)
	assert.Equal(t, -310.0, el.Y)
}

func TestClickEmptyCanvasClearsSelection(t *testing.T) {
	e := newTestEditor(t)
	addShape(t, e)
	require.NotEmpty(t, e.Interaction().SelectedID)

	e.PointerDown(pt(700, 500))
	e.PointerUp(pt(700, 500))
	assert.Empty(t, e.Interaction().SelectedID)
}

func TestResizeFromHandles(t *testing.T) {
	start := geometry.Rect{X: 100, Y: 100, Width: 200, Height: 100}

	tests := []struct {
		handle Handle
		delta  geometry.Point
		want   geometry.Rect
	}{
		{HandleE, pt(50, 30), geometry.Rect{X: 100, Y: 100, Width: 250, Height: 100}},
		{HandleW, pt(50, 30), geometry.Rect{X: 150, Y: 100, Width: 150, Height: 100}},
		{HandleS, pt(50, 30), geometry.Rect{X: 100, Y: 100, Width: 200, Height: 130}},
		{HandleN, pt(50, 30), geometry.Rect{X: 100, Y: 130, Width: 200, Height: 70}},
		{HandleSE, pt(10, 20), geometry.Rect{X: 100, Y: 100, Width: 210, Height: 120}},
		{HandleNW, pt(10, 20), geometry.Rect{X: 110, Y: 120, Width: 190, Height: 80}},
		{HandleNE, pt(10, 20), geometry.Rect{X: 100, Y: 120, Width: 210, Height: 80}},
		{HandleSW, pt(10, 20), geometry.Rect{X: 110, Y: 100, Width: 190, Height: 120}},
	}
	for _, tt := range tests {
		t.Run(string(tt.handle), func(t *testing.T) {
			assert.Equal(t, tt.want, ResizeRect(start, tt.handle, tt.delta))
		})
	}
}

func TestResizeClampsToMinimum(t *testing.T) {
	start := geometry.Rect{X: 100, Y: 100, Width: 200, Height: 100}
	huge := 10_000.0

	for _, h := range Handles {
		for _, d := range []geometry.Point{pt(huge, huge), pt(-huge, -huge), pt(huge, -huge), pt(-huge, huge)} {
			r := ResizeRect(start, h, d)
			assert.GreaterOrEqual(t, r.Width, document.MinElementSize, "handle %s", h)
			assert.GreaterOrEqual(t, r.Height, document.MinElementSize, "handle %s", h)
		}
	}

	// shrinking past the floor pins the opposite corner
	r := ResizeRect(start, HandleNW, pt(huge, huge))
	assert.Equal(t, geometry.Rect{X: 280, Y: 180, Width: 20, Height: 20}, r)
	assert.Equal(t, start.X+start.Width, r.X+r.Width)
	assert.Equal(t, start.Y+start.Height, r.Y+r.Height)

	r = ResizeRect(start, HandleSE, pt(-huge, -huge))
	assert.Equal(t, geometry.Rect{X: 100, Y: 100, Width: 20, Height: 20}, r)
}

func TestPointerResizeThroughHandle(t *testing.T) {
	capture := &captureCounter{}
	e := newTestEditor(t, WithPointerCapture(capture))
	el := addShape(t, e) // (150,150) 100x100, selected
	before := e.history.Len()

	e.PointerDown(pt(250, 250))
	require.Equal(t, ModeResizing, e.Interaction().Mode)
	assert.Equal(t, HandleSE, e.Interaction().Handle)

	e.PointerMove(pt(100, 100))
	assert.Equal(t, 20.0, el.Width)
	assert.Equal(t, 20.0, el.Height)

	e.PointerUp(pt(300, 280))
	assert.Equal(t, 150.0, el.Width)
	assert.Equal(t, 130.0, el.Height)
	assert.Equal(t, before+1, e.history.Len())
	assert.Equal(t, capture.acquired, capture.released)
}

func TestGuidesNearCenterlines(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)

	e.PointerDown(pt(160, 160)) // offset (10,10)
	e.PointerMove(pt(381, 257.5))
	assert.Equal(t, 371.0, el.X)
	assert.Equal(t, Guides{Vertical: true, Horizontal: true}, e.Interaction().Guides)

	e.PointerMove(pt(382.5, 200))
	assert.Equal(t, Guides{Vertical: true}, e.Interaction().Guides, "1.5 units off is within threshold")

	e.PointerMove(pt(384, 200))
	assert.Equal(t, Guides{}, e.Interaction().Guides)

	e.PointerUp(pt(384, 200))
	assert.Equal(t, Guides{}, e.Interaction().Guides)
}

func TestCancelGestureRestoresGeometry(t *testing.T) {
	capture := &captureCounter{}
	e := newTestEditor(t, WithPointerCapture(capture))
	el := addShape(t, e)
	before := e.history.Len()

	e.PointerDown(pt(160, 160))
	e.PointerMove(pt(400, 400))
	e.CancelGesture()

	assert.Equal(t, geometry.Rect{X: 150, Y: 150, Width: 100, Height: 100}, el.Bounds())
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
	assert.Equal(t, before, e.history.Len())
	assert.Equal(t, 1, capture.released)

	// a late pointer up after cancel does nothing
	e.PointerUp(pt(400, 400))
	assert.Equal(t, before, e.history.Len())
	assert.Equal(t, 1, capture.released)
}

func TestGestureEndsWhenElementDeleted(t *testing.T) {
	capture := &captureCounter{}
	e := newTestEditor(t, WithPointerCapture(capture))
	el := addShape(t, e)

	e.PointerDown(pt(160, 160))
	require.True(t, e.Document().Delete(el.ID))

	e.PointerMove(pt(200, 200))
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
	assert.Empty(t, e.Interaction().SelectedID)
	assert.Equal(t, 1, capture.released)
}

func TestTextEditCommitsOncePerSession(t *testing.T) {
	e := newTestEditor(t)
	id := e.AddElement(document.KindText)
	before := e.history.Len()

	require.True(t, e.BeginTextEdit(id))
	assert.Equal(t, ModeEditingText, e.Interaction().Mode)
	e.EditText("H")
	e.EditText("He")
	e.EditText("Hello {{student_name}}")
	assert.Equal(t, before, e.history.Len(), "keystrokes are not recorded")

	e.EndTextEdit()
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
	assert.Equal(t, before+1, e.history.Len())

	text := e.Document().Find(id).Payload.(*document.TextPayload)
	assert.Equal(t, "Hello {{student_name}}", text.Content)

	require.True(t, e.Undo())
	text = e.Document().Find(id).Payload.(*document.TextPayload)
	assert.Equal(t, "New Text", text.Content)
}

func TestTextEditWithoutChangeDoesNotCommit(t *testing.T) {
	e := newTestEditor(t)
	id := e.AddElement(document.KindText)
	before := e.history.Len()

	e.BeginTextEdit(id)
	e.EditText("changed")
	e.EditText("New Text")
	e.EndTextEdit()
	assert.Equal(t, before, e.history.Len())
}

func TestCancelTextEditRestoresContent(t *testing.T) {
	e := newTestEditor(t)
	id := e.AddElement(document.KindText)

	e.BeginTextEdit(id)
	e.EditText("draft")
	e.CancelGesture()

	text := e.Document().Find(id).Payload.(*document.TextPayload)
	assert.Equal(t, "New Text", text.Content)
}

func TestClickingElsewhereEndsTextEdit(t *testing.T) {
	e := newTestEditor(t)
	id := e.AddElement(document.KindText) // (100,100) 300x50
	before := e.history.Len()

	require.True(t, e.DoubleClick(pt(150, 120)))
	e.EditText("Edited")

	e.PointerDown(pt(150, 120))
	assert.Equal(t, ModeEditingText, e.Interaction().Mode, "click inside the box keeps editing")

	e.PointerDown(pt(800, 550))
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
	assert.Equal(t, before+1, e.history.Len())
	assert.Empty(t, e.Interaction().SelectedID)
	assert.Equal(t, "Edited", e.Document().Find(id).Payload.(*document.TextPayload).Content)
}

func TestBeginTextEditRejectsNonText(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)
	assert.False(t, e.BeginTextEdit(el.ID))
	assert.False(t, e.BeginTextEdit("missing"))
	assert.Equal(t, ModeIdle, e.Interaction().Mode)
}

func TestStaleIDsAreNoOps(t *testing.T) {
	e := newTestEditor(t)
	addShape(t, e)
	before := e.history.Len()

	assert.False(t, e.UpdateElement("missing", document.ContentPatch("x")))
	assert.False(t, e.DeleteElement("missing"))
	assert.Empty(t, e.DuplicateElement("missing"))
	assert.False(t, e.BringToFront("missing"))
	assert.False(t, e.ReorderLayers([]string{"missing"}))
	e.Select("missing")

	assert.Equal(t, before, e.history.Len())
	assert.Empty(t, e.Interaction().SelectedID)
}

func TestDeleteClearsSelection(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)
	require.True(t, e.DeleteSelected())
	assert.Empty(t, e.Interaction().SelectedID)
	assert.Nil(t, e.Document().Find(el.ID))
}

func TestDuplicateSelectsCopy(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)

	id := e.DuplicateElement(el.ID)
	dup := e.Document().Find(id)
	require.NotNil(t, dup)
	assert.Equal(t, id, e.Interaction().SelectedID)
	assert.Equal(t, el.X+20, dup.X)
	assert.Equal(t, el.Y+20, dup.Y)
	assert.Greater(t, dup.ZIndex, el.ZIndex)
}

func TestCanvasPresetRescalesAndUndoes(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)
	require.NoError(t, e.SetCanvasPreset("a4-portrait"))
	assert.Equal(t, document.CanvasSize{Width: 595, Height: 842}, e.Document().Canvas)
	assert.NotEqual(t, 150.0, e.Document().Find(el.ID).X)

	require.True(t, e.Undo())
	assert.Equal(t, document.DefaultCanvasSize, e.Document().Canvas)
	assert.Equal(t, 150.0, e.Document().Find(el.ID).X)

	assert.Error(t, e.SetCanvasPreset("tabloid"))
}

func TestAddTextPresetAndField(t *testing.T) {
	e := newTestEditor(t)
	id, err := e.AddTextPreset(PresetTitle)
	require.NoError(t, err)
	title := e.Document().Find(id).Payload.(*document.TextPayload)
	assert.Equal(t, "CERTIFICATE", title.Content)
	assert.Equal(t, 48.0, title.FontSize)
	assert.True(t, title.Bold())

	_, err = e.AddTextPreset("footer")
	assert.Error(t, err)

	id = e.AddField("grade")
	fields := e.Fields()
	require.Len(t, fields, 1)
	assert.Equal(t, "grade", fields[0].Name)

	field := e.Document().Find(id)
	require.NotNil(t, field)
	assert.Equal(t, geometry.Size{Width: 300, Height: 40}, field.Bounds().Size())
	assert.Equal(t, "#1e40af", field.Payload.(*document.TextPayload).Color)
	assert.False(t, field.Bounds().Overlaps(e.Document().Elements[0].Bounds()))

	second := e.Document().Find(e.AddField("course_name"))
	assert.Equal(t, geometry.Point{X: 100, Y: 200}, geometry.Point{X: field.X, Y: field.Y})
	assert.False(t, second.Bounds().Overlaps(field.Bounds()))
}

func TestJobsGuardInFlight(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)

	job, err := e.BeginSave()
	require.NoError(t, err)
	assert.True(t, e.Busy(JobSave))

	_, err = e.BeginSave()
	assert.ErrorIs(t, err, ErrRequestInFlight)

	// exports are guarded separately
	exp, err := e.BeginExport()
	require.NoError(t, err)
	exp.Done()

	// the job owns a copy; editing continues
	e.UpdateElement(el.ID, document.GeometryPatch(0, 0, 50, 50))
	assert.Equal(t, 150.0, job.Document.Find(el.ID).X)

	job.Done()
	job.Done()
	assert.False(t, e.Busy(JobSave))

	_, err = e.BeginSave()
	assert.NoError(t, err)
}

func TestRenderAndState(t *testing.T) {
	e := newTestEditor(t)
	addShape(t, e)
	e.AddField("student_name")

	var cmds []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.Render()), &cmds))
	require.Len(t, cmds, 3)
	assert.Equal(t, "background", cmds[0]["op"])

	s := e.State()
	assert.Equal(t, "a4-landscape", s.Preset)
	assert.Equal(t, "idle", s.Mode)
	assert.True(t, s.CanUndo)
	require.Len(t, s.Layers, 2)
	assert.Equal(t, "{{student_name}}", s.Layers[0].Label)
	assert.NotNil(t, s.Selection)
}

func TestStateReportsRotatedSelectionExtent(t *testing.T) {
	e := newTestEditor(t)
	el := addShape(t, e)
	box := el.Bounds()

	rotation := 45.0
	require.True(t, e.UpdateElement(el.ID, document.Patch{Rotation: &rotation}))

	s := e.State()
	require.NotNil(t, s.Selection)
	require.NotNil(t, s.SelectionExtent)
	assert.Equal(t, box, *s.Selection)

	side := box.Width * math.Sqrt2
	assert.InDelta(t, side, s.SelectionExtent.Width, 1e-9)
	assert.InDelta(t, side, s.SelectionExtent.Height, 1e-9)
	assert.InDelta(t, box.Center().X, s.SelectionExtent.Center().X, 1e-9)
}

func TestLoadJSONResetsHistory(t *testing.T) {
	e := newTestEditor(t)
	addShape(t, e)

	data := `{"name":"Imported","canvasSize":{"width":800,"height":600},"elements":[
		{"id":"a","type":"text","x":10,"y":10,"width":100,"height":40,"zIndex":1,"content":"Hi"}]}`
	require.NoError(t, e.LoadJSON([]byte(data)))
	assert.Equal(t, "Imported", e.Document().Name)
	assert.Len(t, e.Document().Elements, 1)
	assert.False(t, e.CanUndo())
}
