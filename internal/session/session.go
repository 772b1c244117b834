// Package session serves thin-client editing over a websocket: each
// connection drives its own engine.Editor and receives state plus draw
// commands after every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/engine"
	"github.com/certcanvas/certcanvas/backend-go/internal/export"
	"github.com/certcanvas/certcanvas/backend-go/internal/geometry"
	"github.com/certcanvas/certcanvas/backend-go/internal/template"
)

const (
	inboxSize  = 64
	jobTimeout = 2 * time.Minute
)

// Templates is the persistence the session saves through.
type Templates interface {
	Get(ctx context.Context, id, orgID string) (*template.Template, error)
	Create(ctx context.Context, orgID string, data template.Data) (*template.Template, error)
	Update(ctx context.Context, id, orgID string, data template.Data) (*template.Template, error)
}

// Exporter produces certificates for the session's current template.
type Exporter interface {
	Export(ctx context.Context, orgID string, req export.Request) (*export.Result, error)
}

// Session owns one editor. All editor access happens on the goroutine
// running Run; save and export jobs report back through completions.
type Session struct {
	ID    string
	OrgID string

	editor     *engine.Editor
	templates  Templates
	exporter   Exporter
	send       func(*Message)
	onTemplate func(s *Session, templateID string, saved bool)
	templateID string

	inbox       chan CommandPayload
	completions chan func()
	jobs        sync.WaitGroup
}

type Config struct {
	ID         string
	OrgID      string
	Templates  Templates
	Exporter   Exporter
	QRFallback string
	Send       func(*Message)
	// OnTemplate runs on the session goroutine whenever the session opens
	// or saves a template.
	OnTemplate func(s *Session, templateID string, saved bool)
}

func New(cfg Config) *Session {
	onTemplate := cfg.OnTemplate
	if onTemplate == nil {
		onTemplate = func(*Session, string, bool) {}
	}
	return &Session{
		ID:          cfg.ID,
		OrgID:       cfg.OrgID,
		editor:      engine.NewEditor(nil, engine.WithQRFallback(cfg.QRFallback)),
		templates:   cfg.Templates,
		exporter:    cfg.Exporter,
		send:        cfg.Send,
		onTemplate:  onTemplate,
		inbox:       make(chan CommandPayload, inboxSize),
		completions: make(chan func(), inboxSize),
	}
}

// TemplateID returns the template the session is editing. Call only from
// the session goroutine or after Run has returned.
func (s *Session) TemplateID() string { return s.templateID }

// Dispatch queues cmd for the session goroutine. It reports false if the
// session is not keeping up.
func (s *Session) Dispatch(cmd CommandPayload) bool {
	select {
	case s.inbox <- cmd:
		return true
	default:
		return false
	}
}

// Run processes commands until ctx is done, then waits for outstanding jobs.
func (s *Session) Run(ctx context.Context) {
	defer s.jobs.Wait()
	for {
		select {
		case cmd := <-s.inbox:
			s.Handle(ctx, cmd)
		case done := <-s.completions:
			done()
		case <-ctx.Done():
			return
		}
	}
}

// Handle applies one command synchronously and pushes the resulting state.
func (s *Session) Handle(ctx context.Context, cmd CommandPayload) {
	changed, err := s.apply(ctx, cmd)
	if err != nil {
		s.sendError(cmd.Op, err)
	}
	if changed {
		s.pushState()
	}
}

func (s *Session) apply(ctx context.Context, cmd CommandPayload) (bool, error) {
	e := s.editor
	pt := geometry.Point{X: cmd.X, Y: cmd.Y}

	switch cmd.Op {
	case OpLoad:
		return true, s.load(ctx, cmd.TemplateID)
	case OpNew:
		e.Load(nil)
		s.templateID = ""
		s.onTemplate(s, "", false)
	case OpPointerDown:
		e.PointerDown(pt)
	case OpPointerMove:
		if e.Interaction().Mode == engine.ModeIdle {
			return false, nil
		}
		e.PointerMove(pt)
	case OpPointerUp:
		e.PointerUp(pt)
	case OpDoubleClick:
		e.DoubleClick(pt)
	case OpBeginResize:
		e.BeginResize(cmd.Handle, pt)
	case OpCancel:
		e.CancelGesture()
	case OpSelect:
		e.Select(cmd.ID)
	case OpAdd:
		if e.AddElement(cmd.Kind) == "" {
			return false, fmt.Errorf("unknown element kind %q", cmd.Kind)
		}
	case OpAddPreset:
		if _, err := e.AddTextPreset(engine.TextPreset(cmd.Preset)); err != nil {
			return false, err
		}
	case OpAddField:
		if cmd.Field == "" {
			return false, errors.New("field is required")
		}
		e.AddField(cmd.Field)
	case OpUpdate:
		if cmd.Patch == nil {
			return false, errors.New("patch is required")
		}
		return e.UpdateElement(cmd.ID, *cmd.Patch), nil
	case OpDelete:
		if cmd.ID == "" {
			return e.DeleteSelected(), nil
		}
		return e.DeleteElement(cmd.ID), nil
	case OpDuplicate:
		return e.DuplicateElement(cmd.ID) != "", nil
	case OpBringToFront:
		return e.BringToFront(cmd.ID), nil
	case OpReorder:
		return e.ReorderLayers(cmd.Order), nil
	case OpNudge:
		return e.Nudge(cmd.X, cmd.Y), nil
	case OpEditText:
		e.EditText(cmd.Content)
	case OpEndTextEdit:
		e.EndTextEdit()
	case OpResizeCanvas:
		return e.ResizeCanvas(document.CanvasSize{Width: cmd.Width, Height: cmd.Height}), nil
	case OpSetPreset:
		return true, e.SetCanvasPreset(cmd.Preset)
	case OpRename:
		return e.Rename(cmd.Name), nil
	case OpSetBackground:
		if cmd.Background == nil {
			return false, errors.New("background is required")
		}
		e.SetBackground(*cmd.Background)
	case OpSetViewport:
		if cmd.Viewport == nil {
			return false, errors.New("viewport is required")
		}
		e.SetViewport(*cmd.Viewport)
		return false, nil
	case OpSetPreviewBindings:
		e.SetPreviewBindings(cmd.Bindings)
	case OpUndo:
		return e.Undo(), nil
	case OpRedo:
		return e.Redo(), nil
	case OpSave:
		return true, s.save(ctx)
	case OpExport:
		return true, s.export(ctx, cmd)
	default:
		return false, fmt.Errorf("unknown op %q", cmd.Op)
	}
	return true, nil
}

func (s *Session) load(ctx context.Context, id string) error {
	if id == "" {
		s.editor.LoadSampleDocument()
		s.templateID = ""
		s.onTemplate(s, "", false)
		return nil
	}
	t, err := s.templates.Get(ctx, id, s.OrgID)
	if err != nil {
		return err
	}
	s.editor.Load(t.Document())
	s.templateID = t.ID
	s.onTemplate(s, t.ID, false)
	return nil
}

// save snapshots the document and writes it on another goroutine so
// editing continues meanwhile.
func (s *Session) save(ctx context.Context) error {
	job, err := s.editor.BeginSave()
	if err != nil {
		return err
	}
	id := s.templateID
	s.goJob(ctx, job, func(ctx context.Context) func() {
		data := template.DataFromDocument(job.Document, "")
		var (
			t   *template.Template
			err error
		)
		if id == "" {
			t, err = s.templates.Create(ctx, s.OrgID, data)
		} else {
			t, err = s.templates.Update(ctx, id, s.OrgID, data)
		}
		return func() {
			if err != nil {
				slog.Error("session save failed", "error", err, "session", s.ID, "template", id)
				s.sendError(OpSave, err)
				return
			}
			s.templateID = t.ID
			s.send(newMessage(TypeSaved, SavedPayload{
				TemplateID:   t.ID,
				ThumbnailURL: t.ThumbnailURL,
				UpdatedAt:    t.UpdatedAt.Format(time.RFC3339Nano),
			}))
			s.onTemplate(s, t.ID, true)
		}
	})
	return nil
}

// export renders the saved template with cmd.Bindings. Unsaved edits are
// not included; the client saves first.
func (s *Session) export(ctx context.Context, cmd CommandPayload) error {
	if s.exporter == nil {
		return errors.New("export is not available")
	}
	id := cmd.TemplateID
	if id == "" {
		id = s.templateID
	}
	req := export.Request{TemplateID: id, Bindings: cmd.Bindings}
	if err := req.Validate(); err != nil {
		return err
	}
	job, err := s.editor.BeginExport()
	if err != nil {
		return err
	}
	s.goJob(ctx, job, func(ctx context.Context) func() {
		res, err := s.exporter.Export(ctx, s.OrgID, req)
		return func() {
			if err != nil {
				slog.Error("session export failed", "error", err, "session", s.ID, "template", id)
				s.sendError(OpExport, err)
				return
			}
			s.send(newMessage(TypeExported, export.Response{
				Success:  true,
				ExportID: res.ID,
				FileURL:  res.FileURL,
				FilePath: res.FilePath,
				Filename: res.Filename,
			}))
		}
	})
	return nil
}

// goJob runs work off the session goroutine. The func it returns is run
// back on the session goroutine, and the job slot is released only after
// it has run, so a follow-up request sees its effects.
func (s *Session) goJob(ctx context.Context, job *engine.Job, work func(context.Context) func()) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
		defer cancel()

		finish := work(jobCtx)
		complete := func() {
			finish()
			job.Done()
			s.pushState()
		}
		select {
		case s.completions <- complete:
		case <-ctx.Done():
			job.Done()
		}
	}()
}

func (s *Session) pushState() {
	s.send(newMessage(TypeState, StatePayload{
		State:      s.editor.State(),
		Commands:   s.editor.Compile(),
		TemplateID: s.templateID,
	}))
}

func (s *Session) sendError(op string, err error) {
	payload := ErrorPayload{Op: op, Message: err.Error()}
	var verr *export.ValidationError
	if errors.As(err, &verr) {
		payload.Fields = verr.Fields
	}
	switch {
	case errors.Is(err, template.ErrNotFound):
		payload.Message = "template not found"
	case errors.Is(err, template.ErrForbidden):
		payload.Message = "forbidden"
	}
	s.send(newMessage(TypeError, payload))
}

// notifyChanged tells the client another session saved the template it has open.
func (s *Session) notifyChanged(templateID, by string) {
	s.send(newMessage(TypeTemplateChanged, TemplateChangedPayload{TemplateID: templateID, By: by}))
}
