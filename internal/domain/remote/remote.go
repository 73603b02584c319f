// Package remote defines the plain data transfer objects returned by the
// GitHub API port. Adapters map wire types into these; the cache layer maps
// them into local model entities. Identifiers here are GitHub's own, never
// local surrogate keys.
package remote

import "time"

// User is a GitHub account as observed on the wire.
type User struct {
	InternalID int64
	Login      string
	AvatarURL  string
	Type       string
}

// Repository is a GitHub repository as observed on the wire.
type Repository struct {
	InternalID    int64
	Name          string
	Owner         User
	Description   string
	Private       bool
	Fork          bool
	DefaultBranch string
	HTMLURL       string
	CloneURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      time.Time
}

// Label is an issue/PR label as observed on the wire.
type Label struct {
	InternalID  int64
	Name        string
	Color       string
	Description string
}

// Issue is a GitHub issue as observed on the wire.
type Issue struct {
	InternalID int64
	Number     int
	Title      string
	Body       string
	State      string
	HTMLURL    string
	Author     User
	Labels     []Label
	Assignees  []User
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   time.Time
}

// PullRequest is a GitHub pull request as observed on the wire.
type PullRequest struct {
	InternalID   int64
	Number       int
	Title        string
	Body         string
	State        string
	HTMLURL      string
	HeadSHA      string
	SourceBranch string
	TargetBranch string
	Draft        bool
	Author       User
	Labels       []Label
	Assignees    []User
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     time.Time
	MergedAt     time.Time
}

// CheckRun is an individual CI check run as observed on the wire.
type CheckRun struct {
	InternalID  int64
	Name        string
	HeadSHA     string
	Status      string
	Conclusion  string
	DetailsURL  string
	HTMLURL     string
	StartedAt   time.Time
	CompletedAt time.Time
}

// CheckSuite is a check suite as observed on the wire.
type CheckSuite struct {
	InternalID int64
	AppID      int64
	AppName    string
	HeadSHA    string
	Status     string
	Conclusion string
	HTMLURL    string
}

// CombinedStatus is the aggregate commit status for one ref from the legacy
// Status API.
type CombinedStatus struct {
	HeadSHA    string
	State      string
	TotalCount int
}

// Review is a pull request review as observed on the wire.
type Review struct {
	InternalID  int64
	Author      User
	State       string
	Body        string
	HTMLURL     string
	SubmittedAt time.Time
}

// Release is a repository release as observed on the wire.
type Release struct {
	InternalID  int64
	Name        string
	TagName     string
	Prerelease  bool
	HTMLURL     string
	CreatedAt   time.Time
	PublishedAt time.Time
}
