package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

func named(name string) Snapshot {
	return Snapshot{DocumentName: name}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m := NewManager(named("S0"), DefaultLimit)
	m.Push(named("S1"))
	m.Push(named("S2"))

	s, ok := m.Undo()
	require.True(t, ok)
	assert.Equal(t, "S1", s.DocumentName)

	s, ok = m.Undo()
	require.True(t, ok)
	assert.Equal(t, "S0", s.DocumentName)

	_, ok = m.Undo()
	assert.False(t, ok, "undo at origin is a no-op")
	assert.Equal(t, "S0", m.Current().DocumentName)

	s, ok = m.Redo()
	require.True(t, ok)
	assert.Equal(t, "S1", s.DocumentName)
	s, ok = m.Redo()
	require.True(t, ok)
	assert.Equal(t, "S2", s.DocumentName)

	_, ok = m.Redo()
	assert.False(t, ok, "redo at top is a no-op")
	assert.Equal(t, "S2", m.Current().DocumentName)
}

func TestPushDiscardsRedoBranch(t *testing.T) {
	m := NewManager(named("S0"), DefaultLimit)
	m.Push(named("S1"))
	m.Push(named("S2"))
	m.Undo()
	m.Push(named("S3"))

	assert.Equal(t, 3, m.Len())
	assert.False(t, m.CanRedo())

	s, _ := m.Undo()
	assert.Equal(t, "S1", s.DocumentName)
}

func TestLimitDropsOldest(t *testing.T) {
	m := NewManager(named("S0"), 5)
	for i := 1; i <= 8; i++ {
		m.Push(named(fmt.Sprintf("S%d", i)))
	}

	assert.Equal(t, 5, m.Len())
	assert.Equal(t, 4, m.Cursor())
	assert.Equal(t, "S8", m.Current().DocumentName)

	var seen []string
	for {
		s, ok := m.Undo()
		if !ok {
			break
		}
		seen = append(seen, s.DocumentName)
	}
	assert.Equal(t, []string{"S7", "S6", "S5", "S4"}, seen)
}

func TestInitialStateUndoIsNoop(t *testing.T) {
	m := NewManager(named("start"), 0)
	_, ok := m.Undo()
	assert.False(t, ok)
	assert.False(t, m.CanUndo())
	assert.Equal(t, 1, m.Len())
}

func TestSnapshotsAreIndependentOfDocument(t *testing.T) {
	doc := document.New("Doc", document.CanvasSize{Width: 800, Height: 600})
	el := doc.Add(document.KindText, document.AddParams{})

	snap := Capture(doc)
	el.X = 4242
	el.Payload.(*document.TextPayload).Content = "edited"

	require.Len(t, snap.Elements, 1)
	assert.NotEqual(t, 4242.0, snap.Elements[0].X)
	assert.Equal(t, "New Text", snap.Elements[0].Payload.(*document.TextPayload).Content)

	snap.Restore(doc)
	doc.Elements[0].X = 1
	assert.NotEqual(t, 1.0, snap.Elements[0].X, "restore must hand out a copy")
}
