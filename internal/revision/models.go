package revision

import "time"

// DocumentType is the kind of document a revision was captured from.
type DocumentType string

const (
	TypePost DocumentType = "post"
	TypePage DocumentType = "page"
)

// DefaultDocumentID is stamped on snapshots of documents that have not been
// persisted by the host yet.
const DefaultDocumentID = "draft"

// AuthorRef is a lightweight author reference carried inside a revision.
type AuthorRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// TagRef is a lightweight tag reference carried inside a revision.
type TagRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Revision is an immutable snapshot of an in-progress document edit.
// Body is the editor's serialized content and is never interpreted here.
type Revision struct {
	ID           string       `json:"id"`
	Type         DocumentType `json:"type"`
	SnapshotTime int64        `json:"snapshotTime"`
	Title        string       `json:"title"`
	Body         string       `json:"body,omitempty"`
	Excerpt      string       `json:"excerpt,omitempty"`
	FeatureImage string       `json:"featureImage,omitempty"`
	Status       string       `json:"status,omitempty"`
	Slug         string       `json:"slug,omitempty"`
	Authors      []AuthorRef  `json:"authors,omitempty"`
	Tags         []TagRef     `json:"tags,omitempty"`
}

// SnapshotAt returns the snapshot time as a time.Time.
func (r *Revision) SnapshotAt() time.Time {
	return time.UnixMilli(r.SnapshotTime)
}

// Summary is one line of the grouped debug listing.
type Summary struct {
	Key          string    `json:"key" yaml:"key"`
	ID           string    `json:"id" yaml:"id"`
	Type         string    `json:"type" yaml:"type"`
	SnapshotTime time.Time `json:"snapshotTime" yaml:"snapshotTime"`
}

// SummaryGroup collects the revisions that share a title, newest first.
type SummaryGroup struct {
	Title     string    `json:"title" yaml:"title"`
	Revisions []Summary `json:"revisions" yaml:"revisions"`
}
