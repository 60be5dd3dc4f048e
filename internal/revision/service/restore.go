package service

import (
	"context"
	"fmt"

	"github.com/gogotex/gogotex/backend/autosave/internal/document"
	"github.com/gogotex/gogotex/backend/autosave/internal/models"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
	"github.com/gogotex/gogotex/backend/autosave/pkg/metrics"
)

const restoredTitlePrefix = "(Restored) "

// Restore creates a new draft document from the revision stored under key.
// Authors are resolved one by one; the first failure aborts the restore before
// anything is created. The revision itself is left untouched.
func (s *Service) Restore(ctx context.Context, key string) (*document.Document, error) {
	doc, err := s.restore(ctx, key)
	if err != nil {
		metrics.RevisionRestores.WithLabelValues("failed").Inc()
		s.log.Errorw("revision restore failed", "key", key, "error", err)
		return nil, err
	}
	metrics.RevisionRestores.WithLabelValues("ok").Inc()
	s.log.Infow("revision restored", "key", key, "document", doc.ID)
	return doc, nil
}

func (s *Service) restore(ctx context.Context, key string) (*document.Document, error) {
	if s.authors == nil || s.documents == nil {
		return nil, ErrNoHost
	}
	rev, err := s.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	authors := make([]models.User, 0, len(rev.Authors))
	for _, ref := range rev.Authors {
		u, err := s.authors.ResolveAuthor(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrAuthorResolution, ref.ID, err)
		}
		authors = append(authors, *u)
	}

	doc := restoredDocument(rev, authors)
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save restored document: %w", err)
	}
	return doc, nil
}

// restoredDocument builds the unsaved draft for rev.
func restoredDocument(rev *revision.Revision, authors []models.User) *document.Document {
	slug := rev.Slug
	if slug == "" {
		slug = document.DefaultSlug
	}
	tags := make([]document.Tag, 0, len(rev.Tags))
	for _, t := range rev.Tags {
		tags = append(tags, document.Tag{ID: t.ID, Name: t.Name, Slug: t.Slug})
	}
	return &document.Document{
		Title:        restoredTitlePrefix + rev.Title,
		Slug:         slug,
		Type:         string(rev.Type),
		Status:       document.StatusDraft,
		Content:      rev.Body,
		Excerpt:      rev.Excerpt,
		FeatureImage: rev.FeatureImage,
		Authors:      authors,
		Tags:         tags,
	}
}
