package template

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

// Store persists templates. Implementations return ErrNotFound for
// unknown ids and never check organization ownership.
type Store interface {
	List(ctx context.Context, orgID string) ([]*Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	Create(ctx context.Context, t *Template) error
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore keeps templates in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]*Template)}
}

func (s *MemoryStore) List(ctx context.Context, orgID string) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Template, 0)
	for _, t := range s.templates {
		if t.OrganizationID == orgID {
			out = append(out, t.clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[t.ID]; ok {
		return fmt.Errorf("template %s already exists", t.ID)
	}
	s.templates[t.ID] = t.clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[t.ID]; !ok {
		return ErrNotFound
	}
	s.templates[t.ID] = t.clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func sortNewestFirst(ts []*Template) {
	slices.SortStableFunc(ts, func(a, b *Template) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// encodeColumns serializes the JSON columns shared by the SQL stores.
func encodeColumns(t *Template) (elements, background []byte, err error) {
	els := t.Elements
	if els == nil {
		els = []*document.Element{}
	}
	if elements, err = json.Marshal(els); err != nil {
		return nil, nil, fmt.Errorf("encode elements: %w", err)
	}
	if background, err = json.Marshal(t.Background); err != nil {
		return nil, nil, fmt.Errorf("encode background: %w", err)
	}
	return elements, background, nil
}

func decodeColumns(t *Template, elements, background []byte) error {
	els, err := document.DecodeElements(elements)
	if err != nil {
		return err
	}
	if els == nil {
		els = []*document.Element{}
	}
	t.Elements = els
	if len(background) > 0 {
		if err := json.Unmarshal(background, &t.Background); err != nil {
			return fmt.Errorf("decode background: %w", err)
		}
	}
	return nil
}
