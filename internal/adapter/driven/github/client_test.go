package github_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	ghAdapter "github.com/ericfisherdev/ghmirror/internal/adapter/driven/github"
	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) (*ghAdapter.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(
		server.Client(),
		server.URL+"/",
		"testuser",
	)
	require.NoError(t, err)

	return client, server
}

func TestGetRepository(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": 7,
			"name": "hello-world",
			"owner": {"id": 42, "login": "octocat", "type": "User"},
			"description": "My first repo",
			"private": false,
			"default_branch": "main",
			"html_url": "https://github.com/octocat/hello-world",
			"clone_url": "https://github.com/octocat/hello-world.git",
			"created_at": "2025-01-01T00:00:00Z",
			"updated_at": "2026-01-10T12:00:00Z",
			"pushed_at": "2026-01-11T08:00:00Z"
		}`)
	})

	client, _ := newTestClient(t, handler)
	repo, err := client.GetRepository(context.Background(), "octocat", "hello-world")

	require.NoError(t, err)
	assert.Equal(t, int64(7), repo.InternalID)
	assert.Equal(t, "hello-world", repo.Name)
	assert.Equal(t, "octocat", repo.Owner.Login)
	assert.Equal(t, int64(42), repo.Owner.InternalID)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.False(t, repo.PushedAt.IsZero())
}

func TestGetRepository_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.GetRepository(context.Background(), "octocat", "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, driven.ErrNotFound), "404 must map to ErrNotFound, got %v", err)
}

func TestGetRepository_Forbidden(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "Must have admin rights"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.GetRepository(context.Background(), "octocat", "private-repo")

	require.Error(t, err)
	assert.True(t, errors.Is(err, driven.ErrForbidden), "403 must map to ErrForbidden, got %v", err)
}

func TestGetRepository_RateLimited(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "2524608000")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.GetRepository(context.Background(), "octocat", "hello-world")

	require.Error(t, err)
	assert.True(t, errors.Is(err, driven.ErrRateLimited),
		"exhausted primary limit must map to ErrRateLimited, not ErrForbidden, got %v", err)
}

func TestSearchIssues(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/issues", r.URL.Path)
		query := r.URL.Query().Get("q")
		assert.Contains(t, query, "repo:octocat/hello-world")
		assert.Contains(t, query, "is:issue")
		assert.Contains(t, query, "label:bug")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"total_count": 2,
			"items": [
				{
					"id": 100,
					"number": 1,
					"title": "Crash on startup",
					"state": "open",
					"html_url": "https://github.com/octocat/hello-world/issues/1",
					"user": {"id": 50, "login": "alice"},
					"labels": [{"id": 1, "name": "bug", "color": "d73a4a"}],
					"assignees": [{"id": 51, "login": "bob"}],
					"created_at": "2026-01-05T09:00:00Z",
					"updated_at": "2026-01-06T09:00:00Z"
				},
				{
					"id": 101,
					"number": 2,
					"title": "Actually a PR",
					"state": "open",
					"user": {"id": 50, "login": "alice"},
					"pull_request": {"url": "https://api.github.com/repos/octocat/hello-world/pulls/2"}
				}
			]
		}`)
	})

	client, _ := newTestClient(t, handler)
	issues, err := client.SearchIssues(context.Background(), "octocat", "hello-world",
		driven.IssueListOptions{Query: "label:bug"})

	require.NoError(t, err)
	require.Len(t, issues, 1, "pull requests in search results must be skipped")

	assert.Equal(t, int64(100), issues[0].InternalID)
	assert.Equal(t, "Crash on startup", issues[0].Title)
	assert.Equal(t, "alice", issues[0].Author.Login)
	require.Len(t, issues[0].Labels, 1)
	assert.Equal(t, "bug", issues[0].Labels[0].Name)
	require.Len(t, issues[0].Assignees, 1)
	assert.Equal(t, "bob", issues[0].Assignees[0].Login)
}

func TestListPullRequests_Paginated(t *testing.T) {
	var server *httptest.Server

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world/pulls", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{
				"id": 201, "number": 6, "title": "second page", "state": "open",
				"user": {"id": 50, "login": "alice"},
				"head": {"ref": "feat-b", "sha": "def456"},
				"base": {"ref": "main"}
			}]`)
			return
		}

		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octocat/hello-world/pulls?page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `[{
			"id": 200, "number": 5, "title": "first page", "state": "open", "draft": true,
			"user": {"id": 50, "login": "alice"},
			"head": {"ref": "feat-a", "sha": "abc123"},
			"base": {"ref": "main"},
			"merged_at": null
		}]`)
	})

	client, srv := newTestClient(t, handler)
	server = srv

	prs, err := client.ListPullRequests(context.Background(), "octocat", "hello-world", driven.PullRequestListOptions{})
	require.NoError(t, err)
	require.Len(t, prs, 2)

	assert.Equal(t, int64(200), prs[0].InternalID)
	assert.Equal(t, "abc123", prs[0].HeadSHA)
	assert.Equal(t, "feat-a", prs[0].SourceBranch)
	assert.Equal(t, "main", prs[0].TargetBranch)
	assert.True(t, prs[0].Draft)
	assert.Equal(t, int64(201), prs[1].InternalID)
}

func TestListPullRequests_MaxPages(t *testing.T) {
	var server *httptest.Server
	calls := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octocat/hello-world/pulls?page=%d>; rel="next"`, server.URL, calls+1))
		fmt.Fprintf(w, `[{"id": %d, "number": %d, "state": "open", "user": {"id": 50, "login": "alice"}, "head": {"sha": "a"}, "base": {"ref": "main"}}]`, 200+calls, calls)
	})

	client, srv := newTestClient(t, handler)
	server = srv

	prs, err := client.ListPullRequests(context.Background(), "octocat", "hello-world",
		driven.PullRequestListOptions{MaxPages: 2})
	require.NoError(t, err)
	assert.Len(t, prs, 2)
	assert.Equal(t, 2, calls, "the page cap must stop pagination")
}

func TestListCheckRuns(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world/commits/abc123/check-runs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"total_count": 2,
			"check_runs": [
				{
					"id": 1001, "name": "build", "head_sha": "abc123",
					"status": "completed", "conclusion": "success",
					"details_url": "https://ci.example.com/1001",
					"html_url": "https://github.com/octocat/hello-world/runs/1001",
					"started_at": "2026-02-10T10:00:00Z",
					"completed_at": "2026-02-10T10:05:00Z"
				},
				{
					"id": 1002, "name": "lint", "head_sha": "abc123",
					"status": "in_progress", "conclusion": null,
					"started_at": "2026-02-10T10:00:00Z"
				}
			]
		}`)
	})

	client, _ := newTestClient(t, handler)
	runs, err := client.ListCheckRuns(context.Background(), "octocat", "hello-world", "abc123")

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "build", runs[0].Name)
	assert.Equal(t, "success", runs[0].Conclusion)
	assert.Equal(t, "lint", runs[1].Name)
	assert.Equal(t, "", runs[1].Conclusion)
	assert.True(t, runs[1].CompletedAt.IsZero())
}

func TestListCheckSuites(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world/commits/abc123/check-suites", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"total_count": 1,
			"check_suites": [{
				"id": 3001, "head_sha": "abc123",
				"status": "completed", "conclusion": "failure",
				"app": {"id": 15368, "name": "GitHub Actions"}
			}]
		}`)
	})

	client, _ := newTestClient(t, handler)
	suites, err := client.ListCheckSuites(context.Background(), "octocat", "hello-world", "abc123")

	require.NoError(t, err)
	require.Len(t, suites, 1)
	assert.Equal(t, int64(3001), suites[0].InternalID)
	assert.Equal(t, int64(15368), suites[0].AppID)
	assert.Equal(t, "GitHub Actions", suites[0].AppName)
	assert.Equal(t, "failure", suites[0].Conclusion)
}

func TestGetCombinedStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"state": "pending", "total_count": 3, "statuses": [{}, {}, {}]}`)
	})

	client, _ := newTestClient(t, handler)
	cs, err := client.GetCombinedStatus(context.Background(), "octocat", "hello-world", "abc123")

	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, "pending", cs.State)
	assert.Equal(t, 3, cs.TotalCount)
	assert.Equal(t, "abc123", cs.HeadSHA)
}

func TestGetCombinedStatus_NoneConfigured(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"state": "", "total_count": 0, "statuses": []}`)
	})

	client, _ := newTestClient(t, handler)
	cs, err := client.GetCombinedStatus(context.Background(), "octocat", "hello-world", "abc123")

	require.NoError(t, err)
	assert.Nil(t, cs, "no configured statuses must map to nil, not an empty struct")
}

func TestListReviews(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world/pulls/5/reviews", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{
			"id": 900,
			"user": {"id": 50, "login": "alice"},
			"state": "APPROVED",
			"body": "LGTM",
			"submitted_at": "2026-01-06T12:00:00Z"
		}]`)
	})

	client, _ := newTestClient(t, handler)
	reviews, err := client.ListReviews(context.Background(), "octocat", "hello-world", 5)

	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, int64(900), reviews[0].InternalID)
	assert.Equal(t, "alice", reviews[0].Author.Login)
	assert.Equal(t, "APPROVED", reviews[0].State)
}

func TestListReleases_SkipsDrafts(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world/releases", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": 400, "tag_name": "v1.0.0", "name": "First stable", "prerelease": false,
			 "published_at": "2026-03-01T10:00:00Z"},
			{"id": 401, "tag_name": "v1.1.0-wip", "draft": true}
		]`)
	})

	client, _ := newTestClient(t, handler)
	releases, err := client.ListReleases(context.Background(), "octocat", "hello-world")

	require.NoError(t, err)
	require.Len(t, releases, 1, "draft releases are invisible to other users and must be skipped")
	assert.Equal(t, "v1.0.0", releases[0].TagName)
}

func TestListAuthoredPullRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		assert.Contains(t, query, "author:alice")
		assert.Contains(t, query, "is:pr")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"total_count": 1,
			"items": [{
				"id": 100, "number": 5, "title": "my pr", "state": "open",
				"repository_url": "https://api.github.com/repos/octocat/hello-world",
				"pull_request": {"url": "https://api.github.com/repos/octocat/hello-world/pulls/5"},
				"user": {"id": 50, "login": "alice"}
			}]
		}`)
	})
	mux.HandleFunc("/repos/octocat/hello-world/pulls/5", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": 200, "number": 5, "title": "my pr", "state": "open",
			"user": {"id": 50, "login": "alice"},
			"head": {"ref": "feat", "sha": "abc123"},
			"base": {
				"ref": "main",
				"repo": {
					"id": 7, "name": "hello-world",
					"owner": {"id": 42, "login": "octocat"}
				}
			}
		}`)
	})

	client, _ := newTestClient(t, mux)
	prs, repos, err := client.ListAuthoredPullRequests(context.Background(), "alice")

	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, int64(200), prs[0].InternalID)
	assert.Equal(t, "abc123", prs[0].HeadSHA, "search hits must be refetched to pick up the head SHA")

	require.Len(t, repos, 1)
	assert.Equal(t, int64(7), repos[0].InternalID)
	assert.Equal(t, "octocat", repos[0].Owner.Login)
}

func TestListAuthoredPullRequests_DeduplicatesRepos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		items := `[`
		for i, n := range []int{5, 6} {
			if i > 0 {
				items += ","
			}
			items += fmt.Sprintf(`{
				"id": %d, "number": %d, "state": "open",
				"repository_url": "https://api.github.com/repos/octocat/hello-world",
				"pull_request": {"url": "https://api.github.com/repos/octocat/hello-world/pulls/%d"},
				"user": {"id": 50, "login": "alice"}
			}`, 100+n, n, n)
		}
		items += `]`
		fmt.Fprintf(w, `{"total_count": 2, "items": %s}`, items)
	})
	for _, n := range []int{5, 6} {
		n := n
		mux.HandleFunc(fmt.Sprintf("/repos/octocat/hello-world/pulls/%d", n), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"id": %d, "number": %d, "state": "open",
				"user": {"id": 50, "login": "alice"},
				"head": {"sha": "sha%d"},
				"base": {"ref": "main", "repo": {"id": 7, "name": "hello-world", "owner": {"id": 42, "login": "octocat"}}}
			}`, 200+n, n, n)
		})
	}

	client, _ := newTestClient(t, mux)
	prs, repos, err := client.ListAuthoredPullRequests(context.Background(), "alice")

	require.NoError(t, err)
	assert.Len(t, prs, 2)
	assert.Len(t, repos, 1, "the same repository must be reported once")
}
