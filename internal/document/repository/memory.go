package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gogotex/gogotex/backend/autosave/internal/document"
	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrDuplicateID = errors.New("document id already exists")
)

// Repository persists host documents.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) (string, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context, f document.Filter) ([]*document.Document, error)
	Update(ctx context.Context, id string, content string, title *string) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepo is an in-memory repository used when MongoDB is not configured
// and in unit tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func (m *MemoryRepo) Create(_ context.Context, doc *document.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if _, exists := m.store[doc.ID]; exists {
		return "", ErrDuplicateID
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	m.store[doc.ID] = clone(doc)
	return doc.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return clone(d), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context, f document.Filter) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.store))
	for _, d := range m.store {
		if f.Match(d) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, id string, content string, title *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if title != nil {
		d.Title = *title
	}
	d.Content = content
	d.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// clone copies d so callers never share the stored record.
func clone(d *document.Document) *document.Document {
	cp := *d
	cp.Authors = append(cp.Authors[:0:0], d.Authors...)
	cp.Tags = append(cp.Tags[:0:0], d.Tags...)
	return &cp
}
