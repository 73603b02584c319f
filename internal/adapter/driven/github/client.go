// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

const defaultPageSize = 100

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh    *gh.Client
	login string // Login of the authenticated account; empty for anonymous access.
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// An empty token yields an unauthenticated client for public repositories.
func NewClient(token, login string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client, login: login}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, login string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client, login: login}, nil
}

// Login returns the login the client authenticates as.
func (c *Client) Login() string {
	return c.login
}

// GetRepository fetches a repository's metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*remote.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, name, classify(err, resp))
	}

	logRateLimit(resp, owner+"/"+name, 0, 1)

	mapped := mapRepository(repo)
	return &mapped, nil
}

// SearchIssues retrieves issues for the repository via the Search API, which
// lets saved queries layer extra qualifiers on top of the repo scope.
func (c *Client) SearchIssues(ctx context.Context, owner, name string, opts driven.IssueListOptions) ([]remote.Issue, error) {
	query := fmt.Sprintf("repo:%s/%s is:issue", owner, name)
	switch opts.State {
	case "", "open":
		query += " state:open"
	case "closed":
		query += " state:closed"
	}
	if opts.Query != "" {
		query += " " + opts.Query
	}

	searchOpts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: pageSize(opts.PageSize)},
	}

	var all []remote.Issue
	pages := 0

	for {
		result, resp, err := c.gh.Search.Issues(ctx, query, searchOpts)
		if err != nil {
			return nil, fmt.Errorf("searching issues in %s/%s (page %d): %w", owner, name, searchOpts.Page, classify(err, resp))
		}

		logRateLimit(resp, owner+"/"+name+"/issues", searchOpts.Page, len(result.Issues))

		for _, issue := range result.Issues {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, mapIssue(issue))
		}

		pages++
		if resp.NextPage == 0 || (opts.MaxPages > 0 && pages >= opts.MaxPages) {
			break
		}
		searchOpts.Page = resp.NextPage
	}

	return all, nil
}

// ListPullRequests retrieves pull requests for the repository filtered by
// state, newest activity first.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string, opts driven.PullRequestListOptions) ([]remote.PullRequest, error) {
	state := opts.State
	if state == "" {
		state = "open"
	}

	listOpts := &gh.PullRequestListOptions{
		State:       state,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: pageSize(opts.PageSize)},
	}

	var all []remote.PullRequest
	pages := 0

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, listOpts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s/%s (page %d): %w", owner, name, listOpts.Page, classify(err, resp))
		}

		logRateLimit(resp, owner+"/"+name+"/pulls", listOpts.Page, len(prs))

		for _, pr := range prs {
			all = append(all, mapPullRequest(pr))
		}

		pages++
		if resp.NextPage == 0 || (opts.MaxPages > 0 && pages >= opts.MaxPages) {
			break
		}
		listOpts.Page = resp.NextPage
	}

	return all, nil
}

// ListAuthoredPullRequests finds the open pull requests authored by login
// across all repositories visible to this client, together with the
// repositories they live in. Search results lack head SHAs, so each hit is
// refetched through the Pull Requests API.
func (c *Client) ListAuthoredPullRequests(ctx context.Context, login string) ([]remote.PullRequest, []remote.Repository, error) {
	query := fmt.Sprintf("is:pr is:open author:%s archived:false", login)
	searchOpts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: defaultPageSize},
	}

	var prs []remote.PullRequest
	var repos []remote.Repository
	seenRepos := make(map[int64]bool)

	for {
		result, resp, err := c.gh.Search.Issues(ctx, query, searchOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("searching pull requests by %s (page %d): %w", login, searchOpts.Page, classify(err, resp))
		}

		logRateLimit(resp, "authored-prs/"+login, searchOpts.Page, len(result.Issues))

		for _, hit := range result.Issues {
			owner, name, err := splitRepoURL(hit.GetRepositoryURL())
			if err != nil {
				slog.Warn("skipping search hit with unparseable repository url",
					"url", hit.GetRepositoryURL(), "number", hit.GetNumber())
				continue
			}

			pr, prResp, err := c.gh.PullRequests.Get(ctx, owner, name, hit.GetNumber())
			if err != nil {
				return nil, nil, fmt.Errorf("fetching %s/%s#%d: %w", owner, name, hit.GetNumber(), classify(err, prResp))
			}

			prs = append(prs, mapPullRequest(pr))

			if repo := pr.GetBase().GetRepo(); repo != nil && !seenRepos[repo.GetID()] {
				seenRepos[repo.GetID()] = true
				repos = append(repos, mapRepository(repo))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		searchOpts.Page = resp.NextPage
	}

	return prs, repos, nil
}

// ListCheckRuns retrieves all check runs for the given ref.
func (c *Client) ListCheckRuns(ctx context.Context, owner, name, ref string) ([]remote.CheckRun, error) {
	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: defaultPageSize},
	}

	var all []remote.CheckRun

	for {
		result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, owner, name, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("listing check runs for %s/%s@%s (page %d): %w", owner, name, ref, opts.Page, classify(err, resp))
		}

		logRateLimit(resp, owner+"/"+name+"/check-runs", opts.Page, len(result.CheckRuns))

		for _, cr := range result.CheckRuns {
			all = append(all, mapCheckRun(cr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListCheckSuites retrieves all check suites for the given ref.
func (c *Client) ListCheckSuites(ctx context.Context, owner, name, ref string) ([]remote.CheckSuite, error) {
	opts := &gh.ListCheckSuiteOptions{
		ListOptions: gh.ListOptions{PerPage: defaultPageSize},
	}

	var all []remote.CheckSuite

	for {
		result, resp, err := c.gh.Checks.ListCheckSuitesForRef(ctx, owner, name, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("listing check suites for %s/%s@%s (page %d): %w", owner, name, ref, opts.Page, classify(err, resp))
		}

		logRateLimit(resp, owner+"/"+name+"/check-suites", opts.Page, len(result.CheckSuites))

		for _, cs := range result.CheckSuites {
			all = append(all, mapCheckSuite(cs))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCombinedStatus returns the combined commit status for the given ref from
// the legacy Status API. Returns nil, nil when no statuses are configured.
func (c *Client) GetCombinedStatus(ctx context.Context, owner, name, ref string) (*remote.CombinedStatus, error) {
	cs, resp, err := c.gh.Repositories.GetCombinedStatus(ctx, owner, name, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching combined status for %s/%s@%s: %w", owner, name, ref, classify(err, resp))
	}

	logRateLimit(resp, owner+"/"+name+"/status", 0, cs.GetTotalCount())

	if cs.GetTotalCount() == 0 && cs.GetState() == "" {
		return nil, nil
	}

	return &remote.CombinedStatus{
		HeadSHA:    ref,
		State:      cs.GetState(),
		TotalCount: cs.GetTotalCount(),
	}, nil
}

// ListReviews retrieves all reviews for a pull request.
func (c *Client) ListReviews(ctx context.Context, owner, name string, number int) ([]remote.Review, error) {
	opts := &gh.ListOptions{PerPage: defaultPageSize}

	var all []remote.Review

	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing reviews for %s/%s#%d (page %d): %w", owner, name, number, opts.Page, classify(err, resp))
		}

		for _, r := range reviews {
			all = append(all, mapReview(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListReleases retrieves all releases for a repository.
func (c *Client) ListReleases(ctx context.Context, owner, name string) ([]remote.Release, error) {
	opts := &gh.ListOptions{PerPage: defaultPageSize}

	var all []remote.Release

	for {
		releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing releases for %s/%s (page %d): %w", owner, name, opts.Page, classify(err, resp))
		}

		logRateLimit(resp, owner+"/"+name+"/releases", opts.Page, len(releases))

		for _, rel := range releases {
			if rel.GetDraft() {
				continue
			}
			all = append(all, mapRelease(rel))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// classify wraps API failures with the port's error kinds so the
// orchestrator can pattern-match with errors.Is.
func classify(err error, resp *gh.Response) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %w", driven.ErrRateLimited, err)
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %w", driven.ErrNotFound, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", driven.ErrForbidden, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", driven.ErrRateLimited, err)
		}
	}

	return err
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func pageSize(requested int) int {
	if requested <= 0 || requested > defaultPageSize {
		return defaultPageSize
	}
	return requested
}

// splitRepoURL extracts owner and repo from an API repository URL such as
// "https://api.github.com/repos/octocat/hello-world".
func splitRepoURL(repoURL string) (string, string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "repos" {
		return "", "", fmt.Errorf("unexpected repository url path %q", u.Path)
	}

	return parts[len(parts)-2], parts[len(parts)-1], nil
}
