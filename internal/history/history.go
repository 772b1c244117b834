// Package history keeps a bounded, linear undo/redo stack of whole
// document snapshots.
package history

import (
	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

// DefaultLimit is how many snapshots are retained before the oldest is dropped.
const DefaultLimit = 50

// Snapshot is an immutable copy of the parts of a document that undo restores.
type Snapshot struct {
	DocumentName string
	Canvas       document.CanvasSize
	Background   document.Background
	Elements     []*document.Element
}

// Capture deep-copies the undoable state of doc.
func Capture(doc *document.Document) Snapshot {
	c := doc.Clone()
	return Snapshot{
		DocumentName: c.Name,
		Canvas:       c.Canvas,
		Background:   c.Background,
		Elements:     c.Elements,
	}
}

// Restore writes a copy of the snapshot into doc. The snapshot itself is
// never handed out, so later edits to doc cannot reach it.
func (s Snapshot) Restore(doc *document.Document) {
	doc.Name = s.DocumentName
	doc.Canvas = s.Canvas
	doc.SetBackground(s.Background)
	doc.Elements = document.CloneElements(s.Elements)
	if doc.Elements == nil {
		doc.Elements = []*document.Element{}
	}
}

// Manager is a cursor over a capped sequence of snapshots.
type Manager struct {
	entries []Snapshot
	cursor  int
	limit   int
}

// NewManager starts a history whose only entry is initial.
func NewManager(initial Snapshot, limit int) *Manager {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Manager{
		entries: []Snapshot{initial},
		limit:   limit,
	}
}

// Push records s after the cursor, discarding any redo branch.
func (m *Manager) Push(s Snapshot) {
	m.entries = append(m.entries[:m.cursor+1], s)
	if len(m.entries) > m.limit {
		drop := len(m.entries) - m.limit
		m.entries = append([]Snapshot(nil), m.entries[drop:]...)
	}
	m.cursor = len(m.entries) - 1
}

// Undo steps back one entry. It reports false at the origin.
func (m *Manager) Undo() (Snapshot, bool) {
	if m.cursor == 0 {
		return Snapshot{}, false
	}
	m.cursor--
	return m.entries[m.cursor], true
}

// Redo steps forward one entry. It reports false at the newest entry.
func (m *Manager) Redo() (Snapshot, bool) {
	if m.cursor >= len(m.entries)-1 {
		return Snapshot{}, false
	}
	m.cursor++
	return m.entries[m.cursor], true
}

// Reset discards every entry and starts over from initial.
func (m *Manager) Reset(initial Snapshot) {
	m.entries = []Snapshot{initial}
	m.cursor = 0
}

func (m *Manager) CanUndo() bool { return m.cursor > 0 }
func (m *Manager) CanRedo() bool { return m.cursor < len(m.entries)-1 }
func (m *Manager) Len() int      { return len(m.entries) }
func (m *Manager) Cursor() int   { return m.cursor }

// Current returns the snapshot under the cursor.
func (m *Manager) Current() Snapshot {
	return m.entries[m.cursor]
}
