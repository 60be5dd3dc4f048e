package models

import "time"

// User is an author known to the host application. Revisions only carry a
// reference to it; the full record is resolved when a revision is restored.
type User struct {
	ID        string    `bson:"id" json:"id"`
	Sub       string    `bson:"sub,omitempty" json:"sub,omitempty"` // token subject
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Name      string    `bson:"name" json:"name"`
	Slug      string    `bson:"slug,omitempty" json:"slug,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
