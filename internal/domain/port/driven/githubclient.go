package driven

import (
	"context"

	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// IssueListOptions filters issue search requests.
type IssueListOptions struct {
	State    string // "open", "closed", or "all". Empty means "open".
	Query    string // Extra qualifiers appended to the search query.
	PageSize int    // Results per page. Zero means the adapter default.
	MaxPages int    // Page cap. Zero means fetch all pages.
}

// PullRequestListOptions filters pull request list requests.
type PullRequestListOptions struct {
	State    string // "open", "closed", or "all". Empty means "open".
	PageSize int
	MaxPages int
}

// GitHubClient is the driven port for the remote API. Implementations must
// return errors wrapping ErrNotFound, ErrForbidden, or ErrRateLimited so the
// orchestrator's credential-fallback loop can match on kind.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (*remote.Repository, error)
	SearchIssues(ctx context.Context, owner, name string, opts IssueListOptions) ([]remote.Issue, error)
	ListPullRequests(ctx context.Context, owner, name string, opts PullRequestListOptions) ([]remote.PullRequest, error)
	ListAuthoredPullRequests(ctx context.Context, login string) ([]remote.PullRequest, []remote.Repository, error)
	ListCheckRuns(ctx context.Context, owner, name, ref string) ([]remote.CheckRun, error)
	ListCheckSuites(ctx context.Context, owner, name, ref string) ([]remote.CheckSuite, error)
	GetCombinedStatus(ctx context.Context, owner, name, ref string) (*remote.CombinedStatus, error)
	ListReviews(ctx context.Context, owner, name string, number int) ([]remote.Review, error)
	ListReleases(ctx context.Context, owner, name string) ([]remote.Release, error)
}
