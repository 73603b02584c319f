package model

import "time"

// Review is a locally cached pull request review. Reviews for a PR are fully
// replaced each sync pass rather than diffed.
type Review struct {
	ID            int64
	InternalID    int64
	PullRequestID int64
	AuthorID      int64
	State         string // "approved", "changes_requested", "commented", "dismissed", "pending".
	Body          string
	HTMLURL       string
	SubmittedAt   time.Time
	TimeUpdated   time.Time
}
