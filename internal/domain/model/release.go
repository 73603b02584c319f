package model

import "time"

// Release is a locally cached repository release.
type Release struct {
	ID           int64
	InternalID   int64
	RepositoryID int64
	Name         string
	TagName      string
	Prerelease   bool
	HTMLURL      string
	CreatedAt    time.Time
	PublishedAt  time.Time
	TimeUpdated  time.Time
}
