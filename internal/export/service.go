package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/certcanvas/certcanvas/backend-go/internal/asset"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/template"
	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

// DefaultTimeout bounds one export, independent of the callers waiting on it.
const DefaultTimeout = 2 * time.Minute

// TemplateSource looks up templates on behalf of an organization.
type TemplateSource interface {
	Get(ctx context.Context, id, orgID string) (*template.Template, error)
}

type Service struct {
	templates TemplateSource
	renderer  PDFRenderer
	store     asset.Storage
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
	timeout   time.Duration
	group     singleflight.Group
}

type Option func(*Service)

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(templates TemplateSource, renderer PDFRenderer, store asset.Storage, opts ...Option) *Service {
	s := &Service{
		templates: templates,
		renderer:  renderer,
		store:     store,
		tracer:    otel.Tracer("certcanvas/export"),
		now:       time.Now,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders the certificate for req and uploads it under orgID.
// Identical requests that arrive while one is in flight share its result.
func (s *Service) Export(ctx context.Context, orgID string, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() { s.metrics.record(start, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	bindings := maps.Clone(req.Bindings)
	if bindings == nil {
		bindings = placeholder.Bindings{}
	}
	if bindings[placeholder.FieldOrgID] == "" {
		bindings[placeholder.FieldOrgID] = orgID
	}
	req.Bindings = bindings

	// The shared export outlives any single caller; a caller that gives up
	// only stops waiting.
	ch := s.group.DoChan(dedupKey(orgID, req), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.export(ctx, orgID, req)
	})

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if out.Shared {
		s.metrics.recordShared()
	}
	if out.Err != nil {
		return nil, out.Err
	}
	r := *out.Val.(*Result)
	return &r, nil
}

func (s *Service) export(ctx context.Context, orgID string, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "export.Certificate", trace.WithAttributes(
		attribute.String("template.id", req.TemplateID),
		attribute.String("org.id", orgID),
	))
	defer span.End()

	res, err := s.run(ctx, orgID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) run(ctx context.Context, orgID string, req Request) (*Result, error) {
	tmpl, err := s.templates.Get(ctx, req.TemplateID, orgID)
	if err != nil {
		return nil, err
	}
	doc := tmpl.Document()
	if len(doc.Elements) == 0 {
		return nil, ErrNoElements
	}

	pdf, err := s.renderer.RenderPDF(ctx, doc, req.Bindings)
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}

	filename := fmt.Sprintf("certificate_%d.pdf", s.now().UnixMilli())
	key := asset.SanitizeSegment(orgID) + "/" +
		asset.SanitizeSegment(req.Bindings[placeholder.FieldStudentName]) + "/" + filename

	url, err := s.store.Put(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("upload certificate: %w", err)
	}

	id := typeid.NewExportID()
	slog.Info("certificate exported", "export", id, "template", req.TemplateID, "org", orgID, "path", key, "bytes", len(pdf))
	return &Result{ID: id, FileURL: url, FilePath: key, Filename: filename}, nil
}
