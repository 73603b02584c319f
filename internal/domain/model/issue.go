package model

import "time"

// Issue is a locally cached GitHub issue.
//
// LabelIDs and AssigneeIDs are comma-joined lists of local surrogate IDs.
// They serve double duty as change-detection fingerprints and as the source
// for rebuilding the IssueLabel/IssueAssign association rows; an update that
// changes either string must delete and recreate the association rows in the
// same transaction.
type Issue struct {
	ID           int64
	InternalID   int64
	Number       int
	RepositoryID int64
	AuthorID     int64
	Title        string
	Body         string
	State        string // "open" or "closed".
	HTMLURL      string
	LabelIDs     string
	AssigneeIDs  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     time.Time
	TimeUpdated  time.Time
}

// IssueLabel associates an Issue with a Label by local surrogate IDs.
type IssueLabel struct {
	ID      int64
	IssueID int64
	LabelID int64
}

// IssueAssign associates an Issue with an assigned User by local surrogate IDs.
type IssueAssign struct {
	ID      int64
	IssueID int64
	UserID  int64
}
