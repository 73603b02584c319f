package model

import "time"

// CheckRun is an individual CI check run observed for a commit.
type CheckRun struct {
	ID           int64
	InternalID   int64
	Name         string
	HeadSHA      string
	StatusID     CheckStatus
	ConclusionID CheckConclusion
	DetailsURL   string
	HTMLURL      string
	StartedAt    time.Time
	CompletedAt  time.Time
	TimeUpdated  time.Time
}

// CheckSuite is a grouping of check runs from one app for one commit.
type CheckSuite struct {
	ID           int64
	InternalID   int64
	AppID        int64
	Name         string
	HeadSHA      string
	StatusID     CheckStatus
	ConclusionID CheckConclusion
	HTMLURL      string
	TimeUpdated  time.Time
}

// CommitCombinedStatus is the aggregate commit status for one head SHA,
// from the legacy Status API. One row per SHA.
type CommitCombinedStatus struct {
	ID          int64
	HeadSHA     string
	StateID     CommitState
	TimeUpdated time.Time
}

// PullRequestStatus is a point-in-time snapshot of a pull request's overall
// check state, recorded once per sync pass. Rows are append-only; the
// previous snapshot is always retrievable for transition detection.
type PullRequestStatus struct {
	ID            int64
	PullRequestID int64
	HeadSHA       string
	StatusID      CheckStatus
	ConclusionID  CheckConclusion
	StateID       CommitState
	DetailsURL    string
	HTMLURL       string
	TimeOccurred  time.Time
}

// Failed reports whether the snapshot represents a failed overall state.
func (s PullRequestStatus) Failed() bool {
	return s.ConclusionID.Failed() ||
		s.StateID == CommitStateError || s.StateID == CommitStateFailure
}

// Succeeded reports whether the snapshot represents a fully successful state.
func (s PullRequestStatus) Succeeded() bool {
	if s.StatusID != CheckStatusCompleted && s.StatusID != CheckStatusNone {
		return false
	}
	if s.StateID == CommitStateError || s.StateID == CommitStateFailure || s.StateID == CommitStatePending {
		return false
	}
	return s.ConclusionID.Succeeded() || s.ConclusionID == CheckConclusionSkipped ||
		(s.ConclusionID == CheckConclusionNone && s.StateID == CommitStateSuccess)
}
