// Package model holds the locally cached domain entities.
//
// Every entity with a remote counterpart carries two identifiers: ID is the
// local surrogate key assigned by SQLite, and InternalID is the identifier
// assigned by GitHub. Local associations always reference the surrogate ID so
// rows can be linked before every remote relationship is resolvable.
package model

import "time"

// Repository is a locally cached GitHub repository.
type Repository struct {
	ID            int64
	InternalID    int64
	Name          string
	OwnerID       int64 // Surrogate key of the owning User row.
	Description   string
	Private       bool
	Fork          bool
	DefaultBranch string
	HTMLURL       string
	CloneURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      time.Time
	TimeUpdated   time.Time // When this row was last written locally.
}
