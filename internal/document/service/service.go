package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogotex/gogotex/backend/autosave/internal/document"
	"github.com/gogotex/gogotex/backend/autosave/internal/document/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("not found")
)

// Service defines the document business operations used by the handler layer
// and by revision restore.
type Service interface {
	Create(ctx context.Context, d *document.Document) (string, error)
	Save(ctx context.Context, d *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context, f document.Filter) ([]*document.Document, error)
	Update(ctx context.Context, id string, content string, title *string) error
	Delete(ctx context.Context, id string) error
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return &documentService{repo: repository.NewMemoryRepo()}
}

// NewMongoService returns a Service backed by a MongoDB collection.
// Caller is responsible for creating the collection (and client) and passing it in.
func NewMongoService(ctx context.Context, col *mongo.Collection) (Service, error) {
	repo, err := repository.NewMongoRepo(ctx, col)
	if err != nil {
		return nil, fmt.Errorf("mongo documents: %w", err)
	}
	return &documentService{repo: repo}, nil
}

type documentService struct {
	repo repository.Repository
}

// normalize fills the defaults every stored document must carry.
func normalize(d *document.Document) {
	if d.Slug == "" {
		d.Slug = document.DefaultSlug
	}
	if d.Status == "" {
		d.Status = document.StatusDraft
	}
	if d.Tags == nil {
		d.Tags = []document.Tag{}
	}
}

func (s *documentService) Create(ctx context.Context, d *document.Document) (string, error) {
	normalize(d)
	return s.repo.Create(ctx, d)
}

// Save persists a new record built by the caller; d.ID is set on success.
func (s *documentService) Save(ctx context.Context, d *document.Document) error {
	_, err := s.Create(ctx, d)
	return err
}

func (s *documentService) Get(ctx context.Context, id string) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *documentService) List(ctx context.Context, f document.Filter) ([]*document.Document, error) {
	return s.repo.List(ctx, f)
}

func (s *documentService) Update(ctx context.Context, id string, content string, title *string) error {
	if err := s.repo.Update(ctx, id, content, title); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
