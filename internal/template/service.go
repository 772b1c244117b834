package template

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/certcanvas/certcanvas/backend-go/internal/asset"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

type Service struct {
	store    Store
	renderer *render.Renderer
	thumbs   asset.Storage
	now      func() time.Time
}

type ServiceOption func(*Service)

// WithThumbnailStorage uploads generated thumbnails instead of inlining
// them as data URLs.
func WithThumbnailStorage(s asset.Storage) ServiceOption {
	return func(svc *Service) { svc.thumbs = s }
}

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

func NewService(store Store, renderer *render.Renderer, opts ...ServiceOption) *Service {
	s := &Service{store: store, renderer: renderer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, orgID string) ([]*Template, error) {
	ts, err := s.store.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return ts, nil
}

// Get returns the template if it belongs to orgID. Ids that are not
// template ids are reported as not found without touching the store.
func (s *Service) Get(ctx context.Context, id, orgID string) (*Template, error) {
	if err := typeid.Validate(id, typeid.PrefixTemplate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OrganizationID != orgID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) Create(ctx context.Context, orgID string, data Data) (*Template, error) {
	if err := data.normalize(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Template{
		ID:             typeid.NewTemplateID(),
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	data.applyTo(t)
	s.ensureThumbnail(ctx, t)

	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	slog.Info("template created", "id", t.ID, "org", orgID, "elements", len(t.Elements))
	return t, nil
}

func (s *Service) Update(ctx context.Context, id, orgID string, data Data) (*Template, error) {
	if err := data.normalize(); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, id, orgID)
	if err != nil {
		return nil, err
	}

	data.applyTo(t)
	t.UpdatedAt = s.now().UTC()
	s.ensureThumbnail(ctx, t)

	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id, orgID string) error {
	if _, err := s.Get(ctx, id, orgID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Fields lists the placeholder fields the template's text references.
func (s *Service) Fields(ctx context.Context, id, orgID string) ([]placeholder.Field, error) {
	t, err := s.Get(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	return placeholder.Describe(placeholder.ExtractFields(t.Document())), nil
}

// Preview renders the template with bindings as PNG.
func (s *Service) Preview(ctx context.Context, id, orgID string, bindings placeholder.Bindings) ([]byte, error) {
	t, err := s.Get(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderPNG(ctx, t.Document(), render.Options{Bindings: bindings})
}

// ensureThumbnail renders a thumbnail when the editor did not send one.
// Failures leave the thumbnail empty; saving still succeeds.
func (s *Service) ensureThumbnail(ctx context.Context, t *Template) {
	if t.ThumbnailURL != "" || s.renderer == nil {
		return
	}

	if s.thumbs == nil {
		url, err := s.renderer.ThumbnailDataURL(ctx, t.Document())
		if err != nil {
			slog.Warn("render thumbnail", "error", err, "template", t.ID)
			return
		}
		t.ThumbnailURL = url
		return
	}

	data, err := s.renderer.Thumbnail(ctx, t.Document(), render.ThumbnailWidth)
	if err != nil {
		slog.Warn("render thumbnail", "error", err, "template", t.ID)
		return
	}
	key := fmt.Sprintf("%s/thumbnails/%s_%d.png", asset.SanitizeSegment(t.OrganizationID), t.ID, t.UpdatedAt.UnixMilli())
	url, err := s.thumbs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png")
	if err != nil {
		slog.Warn("upload thumbnail", "error", err, "template", t.ID)
		return
	}
	t.ThumbnailURL = url
}
