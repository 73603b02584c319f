package model

import "time"

// PullRequest is a locally cached GitHub pull request.
//
// LabelIDs and AssigneeIDs follow the same fingerprint/rebuild contract as on
// Issue. Check runs and suites are tied to the PR indirectly through HeadSHA
// equality, never through a foreign key, so a suite observation applies to
// whichever PR currently has that head commit.
type PullRequest struct {
	ID           int64
	InternalID   int64
	Number       int
	RepositoryID int64
	AuthorID     int64
	Title        string
	Body         string
	State        string // "open", "closed", or "merged".
	HTMLURL      string
	HeadSHA      string
	SourceBranch string
	TargetBranch string
	Draft        bool
	LabelIDs     string
	AssigneeIDs  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     time.Time
	MergedAt     time.Time
	TimeUpdated  time.Time
}

// PullRequestLabel associates a PullRequest with a Label by local surrogate IDs.
type PullRequestLabel struct {
	ID            int64
	PullRequestID int64
	LabelID       int64
}
