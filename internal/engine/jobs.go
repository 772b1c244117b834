package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

// ErrRequestInFlight is returned when a save or export is requested while
// the previous one has not finished.
var ErrRequestInFlight = errors.New("request already in flight")

type JobKind int

const (
	JobSave JobKind = iota
	JobExport
	jobKinds
)

func (k JobKind) String() string {
	if k == JobExport {
		return "export"
	}
	return "save"
}

type jobGuard struct {
	inFlight [jobKinds]atomic.Bool
}

func (g *jobGuard) acquire(k JobKind) bool {
	return g.inFlight[k].CompareAndSwap(false, true)
}

func (g *jobGuard) busy(k JobKind) bool {
	return g.inFlight[k].Load()
}

// Job is an outstanding save or export. It carries a private copy of the
// document taken when the job began, so editing can continue while the job
// runs on another goroutine. Done must be called when the job finishes.
type Job struct {
	Kind     JobKind
	Document *document.Document

	once  sync.Once
	guard *jobGuard
}

// Done releases the in-flight slot. It is safe to call more than once.
func (j *Job) Done() {
	j.once.Do(func() {
		j.guard.inFlight[j.Kind].Store(false)
	})
}

// BeginSave starts a save job, or returns ErrRequestInFlight.
func (e *Editor) BeginSave() (*Job, error) {
	return e.begin(JobSave)
}

// BeginExport starts an export job, or returns ErrRequestInFlight.
func (e *Editor) BeginExport() (*Job, error) {
	return e.begin(JobExport)
}

func (e *Editor) begin(k JobKind) (*Job, error) {
	if !e.jobs.acquire(k) {
		return nil, ErrRequestInFlight
	}
	if e.ix.Mode == ModeEditingText {
		e.EndTextEdit()
	}
	return &Job{Kind: k, Document: e.doc.Clone(), guard: &e.jobs}, nil
}

// Busy reports whether a job of kind k is outstanding.
func (e *Editor) Busy(k JobKind) bool {
	return e.jobs.busy(k)
}
