package application

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
	"github.com/stretchr/testify/require"
)

// fakeClient is a scriptable GitHubClient. Every call is recorded; when err
// is set, every call fails with it.
type fakeClient struct {
	repo          *remote.Repository
	issues        []remote.Issue
	prs           []remote.PullRequest
	runs          map[string][]remote.CheckRun
	suites        map[string][]remote.CheckSuite
	combined      map[string]*remote.CombinedStatus
	reviews       map[int][]remote.Review
	releases      []remote.Release
	authoredPRs   []remote.PullRequest
	authoredRepos []remote.Repository

	err   error
	calls []string
}

var _ driven.GitHubClient = (*fakeClient)(nil)

func (f *fakeClient) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeClient) GetRepository(_ context.Context, owner, name string) (*remote.Repository, error) {
	f.record("GetRepository " + owner + "/" + name)
	if f.err != nil {
		return nil, f.err
	}
	return f.repo, nil
}

func (f *fakeClient) SearchIssues(_ context.Context, owner, name string, _ driven.IssueListOptions) ([]remote.Issue, error) {
	f.record("SearchIssues " + owner + "/" + name)
	if f.err != nil {
		return nil, f.err
	}
	return f.issues, nil
}

func (f *fakeClient) ListPullRequests(_ context.Context, owner, name string, _ driven.PullRequestListOptions) ([]remote.PullRequest, error) {
	f.record("ListPullRequests " + owner + "/" + name)
	if f.err != nil {
		return nil, f.err
	}
	return f.prs, nil
}

func (f *fakeClient) ListAuthoredPullRequests(_ context.Context, login string) ([]remote.PullRequest, []remote.Repository, error) {
	f.record("ListAuthoredPullRequests " + login)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.authoredPRs, f.authoredRepos, nil
}

func (f *fakeClient) ListCheckRuns(_ context.Context, _, _, ref string) ([]remote.CheckRun, error) {
	f.record("ListCheckRuns " + ref)
	if f.err != nil {
		return nil, f.err
	}
	return f.runs[ref], nil
}

func (f *fakeClient) ListCheckSuites(_ context.Context, _, _, ref string) ([]remote.CheckSuite, error) {
	f.record("ListCheckSuites " + ref)
	if f.err != nil {
		return nil, f.err
	}
	return f.suites[ref], nil
}

func (f *fakeClient) GetCombinedStatus(_ context.Context, _, _, ref string) (*remote.CombinedStatus, error) {
	f.record("GetCombinedStatus " + ref)
	if f.err != nil {
		return nil, f.err
	}
	return f.combined[ref], nil
}

func (f *fakeClient) ListReviews(_ context.Context, _, _ string, number int) ([]remote.Review, error) {
	f.record(fmt.Sprintf("ListReviews %d", number))
	if f.err != nil {
		return nil, f.err
	}
	return f.reviews[number], nil
}

func (f *fakeClient) ListReleases(_ context.Context, owner, name string) ([]remote.Release, error) {
	f.record("ListReleases " + owner + "/" + name)
	if f.err != nil {
		return nil, f.err
	}
	return f.releases, nil
}

// setupTestService creates a file-backed store in a temp dir and a
// SyncService over the given accounts.
func setupTestService(t *testing.T, accounts []driven.Account, public driven.GitHubClient) (*SyncService, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Create(context.Background(), filepath.Join(t.TempDir(), "cache.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	service := NewSyncService(store, NewAccountProvider(accounts), public)
	return service, store
}

func testRemoteRepo() *remote.Repository {
	return &remote.Repository{
		InternalID:    7,
		Name:          "hello-world",
		Owner:         remote.User{InternalID: 42, Login: "octocat", Type: "User"},
		DefaultBranch: "main",
		HTMLURL:       "https://github.com/octocat/hello-world",
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PushedAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testRemotePR(id int64, number int, headSHA string) remote.PullRequest {
	return remote.PullRequest{
		InternalID:   id,
		Number:       number,
		Title:        fmt.Sprintf("PR %d", number),
		State:        "open",
		HTMLURL:      fmt.Sprintf("https://github.com/octocat/hello-world/pull/%d", number),
		HeadSHA:      headSHA,
		SourceBranch: "feature",
		TargetBranch: "main",
		Author:       remote.User{InternalID: 50, Login: "alice", Type: "User"},
		CreatedAt:    time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}
}

func checkSuite(id int64, headSHA, conclusion string) remote.CheckSuite {
	return remote.CheckSuite{
		InternalID: id, AppID: 15368, AppName: "GitHub Actions",
		HeadSHA: headSHA, Status: "completed", Conclusion: conclusion,
		HTMLURL: fmt.Sprintf("https://github.com/octocat/hello-world/suites/%d", id),
	}
}

func failedSuite(id int64, headSHA string) remote.CheckSuite {
	return checkSuite(id, headSHA, "failure")
}

func successSuite(id int64, headSHA string) remote.CheckSuite {
	return checkSuite(id, headSHA, "success")
}
