package document

import (
	"time"

	"github.com/gogotex/gogotex/backend/autosave/internal/models"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	// DefaultSlug is used for documents saved without a slug.
	DefaultSlug = "untitled"
)

// Tag is a document tag as the host stores it.
type Tag struct {
	ID   string `json:"id,omitempty" bson:"id,omitempty"`
	Name string `json:"name" bson:"name"`
	Slug string `json:"slug,omitempty" bson:"slug,omitempty"`
}

// Document is the host's persistent document record. Restored revisions are
// created as new Documents.
type Document struct {
	ID           string        `json:"id" bson:"id"`
	Title        string        `json:"title" bson:"title"`
	Slug         string        `json:"slug" bson:"slug"`
	Type         string        `json:"type" bson:"type"`
	Status       string        `json:"status" bson:"status"`
	Content      string        `json:"content,omitempty" bson:"content,omitempty"`
	Excerpt      string        `json:"excerpt,omitempty" bson:"excerpt,omitempty"`
	FeatureImage string        `json:"featureImage,omitempty" bson:"featureImage,omitempty"`
	Authors      []models.User `json:"authors" bson:"authors"`
	Tags         []Tag         `json:"tags" bson:"tags"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// Filter narrows a document listing. Empty fields match everything.
type Filter struct {
	Status string
	Type   string
}

// Match reports whether d passes the filter.
func (f Filter) Match(d *Document) bool {
	return (f.Status == "" || d.Status == f.Status) && (f.Type == "" || d.Type == f.Type)
}

// Fields returns the stored field values the filter pins.
func (f Filter) Fields() map[string]string {
	out := map[string]string{}
	if f.Status != "" {
		out["status"] = f.Status
	}
	if f.Type != "" {
		out["type"] = f.Type
	}
	return out
}
