package model

import "time"

// Search is a saved issue query scoped to a repository, keyed by
// (RepositoryID, Query). It backs cached search widgets with a bounded,
// freshness-tracked result set.
type Search struct {
	ID           int64
	RepositoryID int64
	Query        string
	TimeUpdated  time.Time
}

// SearchIssue marks an issue as a current member of a search's result set.
// Rows whose TimeUpdated falls behind the search's own TimeUpdated are stale
// and get pruned.
type SearchIssue struct {
	ID          int64
	SearchID    int64
	IssueID     int64
	TimeUpdated time.Time
}
