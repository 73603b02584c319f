package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
)

// SyncService orchestrates sync passes: fetch remote state through a
// credential-fallback loop, persist it in a single transaction, derive
// notifications from state transitions, prune, and announce the update.
// A mutex serializes passes so the store only ever sees one writer sequence.
type SyncService struct {
	store    *sqlite.Store
	identity driven.Identity
	public   driven.GitHubClient // Optional anonymous fallback for public repositories.

	mu  sync.Mutex
	bus updateBus

	now func() time.Time
}

// NewSyncService creates a SyncService. public may be nil when anonymous
// fallback is disabled.
func NewSyncService(store *sqlite.Store, identity driven.Identity, public driven.GitHubClient) *SyncService {
	return &SyncService{
		store:    store,
		identity: identity,
		public:   public,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnUpdate registers a listener invoked after each committed sync pass.
// Listeners run on the sync goroutine and must not block.
func (s *SyncService) OnUpdate(fn func(UpdateEvent)) {
	s.bus.subscribe(fn)
}

// candidate is one credential in fallback order.
type candidate struct {
	login  string
	client driven.GitHubClient
}

func (s *SyncService) candidates(ctx context.Context) ([]candidate, error) {
	accounts, err := s.identity.LoggedInAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing logged-in accounts: %w", err)
	}

	cands := make([]candidate, 0, len(accounts)+1)
	for _, a := range accounts {
		cands = append(cands, candidate{login: a.Login, client: a.Client})
	}
	if s.public != nil {
		cands = append(cands, candidate{client: s.public})
	}

	return cands, nil
}

// fetchWithFallback runs fetch against each candidate in order until one
// succeeds. Forbidden and NotFound move on to the next candidate; a rate
// limit aborts immediately; exhausting all candidates reports the repository
// as inaccessible.
func (s *SyncService) fetchWithFallback(ctx context.Context, owner, name string, fetch func(driven.GitHubClient) error) error {
	cands, err := s.candidates(ctx)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		return fmt.Errorf("%s/%s: no accounts available: %w", owner, name, driven.ErrRepositoryNotAccessible)
	}

	for _, c := range cands {
		err := fetch(c.client)
		if err == nil {
			return nil
		}
		if errors.Is(err, driven.ErrRateLimited) {
			return err
		}
		if errors.Is(err, driven.ErrForbidden) || errors.Is(err, driven.ErrNotFound) {
			slog.Debug("account cannot access repository, trying next",
				"login", c.login, "repo", owner+"/"+name, "error", err)
			continue
		}
		return err
	}

	return fmt.Errorf("%s/%s: %w", owner, name, driven.ErrRepositoryNotAccessible)
}

// prBundle carries one pull request and everything fetched alongside it.
type prBundle struct {
	pr       remote.PullRequest
	detailed bool // Checks, statuses, and reviews were fetched for this PR.
	runs     []remote.CheckRun
	suites   []remote.CheckSuite
	combined *remote.CombinedStatus
	reviews  []remote.Review
}

// repoSnapshot is the in-memory result of the fetch phase. Keeping the fetch
// free of store writes means a mid-fetch credential failure costs nothing to
// retry with the next account.
type repoSnapshot struct {
	repo     *remote.Repository
	issues   []remote.Issue
	prs      []prBundle
	releases []remote.Release

	issuesFetched   bool
	prsFetched      bool
	releasesFetched bool
	issueState      string
	prState         string
}

func fetchPRBundles(ctx context.Context, client driven.GitHubClient, owner, name string, opts driven.PullRequestListOptions) ([]prBundle, error) {
	prs, err := client.ListPullRequests(ctx, owner, name, opts)
	if err != nil {
		return nil, err
	}

	bundles := make([]prBundle, 0, len(prs))
	for _, pr := range prs {
		bundle := prBundle{pr: pr}

		// Closed and merged PRs keep their last cached checks; only live
		// heads are worth the extra API calls.
		if strings.EqualFold(pr.State, "open") && pr.HeadSHA != "" {
			bundle.detailed = true
			if bundle.runs, err = client.ListCheckRuns(ctx, owner, name, pr.HeadSHA); err != nil {
				return nil, err
			}
			if bundle.suites, err = client.ListCheckSuites(ctx, owner, name, pr.HeadSHA); err != nil {
				return nil, err
			}
			if bundle.combined, err = client.GetCombinedStatus(ctx, owner, name, pr.HeadSHA); err != nil {
				return nil, err
			}
			if bundle.reviews, err = client.ListReviews(ctx, owner, name, pr.Number); err != nil {
				return nil, err
			}
		}

		bundles = append(bundles, bundle)
	}

	return bundles, nil
}

// UpdateAllDataForRepository syncs the repository's metadata, issues, pull
// requests with their checks, statuses, and reviews, and releases in one
// transaction.
func (s *SyncService) UpdateAllDataForRepository(ctx context.Context, owner, name string) error {
	if err := validateRepoName(owner, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var snap repoSnapshot
	err := s.fetchWithFallback(ctx, owner, name, func(client driven.GitHubClient) error {
		repo, err := client.GetRepository(ctx, owner, name)
		if err != nil {
			return err
		}

		issues, err := client.SearchIssues(ctx, owner, name, driven.IssueListOptions{State: "all"})
		if err != nil {
			return err
		}

		prs, err := fetchPRBundles(ctx, client, owner, name, driven.PullRequestListOptions{State: "all"})
		if err != nil {
			return err
		}

		releases, err := client.ListReleases(ctx, owner, name)
		if err != nil {
			return err
		}

		snap = repoSnapshot{
			repo: repo, issues: issues, prs: prs, releases: releases,
			issuesFetched: true, prsFetched: true, releasesFetched: true,
			issueState: "all", prState: "all",
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.persistSnapshot(ctx, owner, name, &snap,
		UpdateKindRepository, UpdateKindIssues, UpdateKindPullRequests,
		UpdateKindChecks, UpdateKindReviews, UpdateKindReleases)
}

// UpdateIssuesForRepository syncs the repository's issues.
func (s *SyncService) UpdateIssuesForRepository(ctx context.Context, owner, name string, opts driven.IssueListOptions) error {
	if err := validateRepoName(owner, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var snap repoSnapshot
	err := s.fetchWithFallback(ctx, owner, name, func(client driven.GitHubClient) error {
		repo, err := client.GetRepository(ctx, owner, name)
		if err != nil {
			return err
		}

		issues, err := client.SearchIssues(ctx, owner, name, opts)
		if err != nil {
			return err
		}

		snap = repoSnapshot{repo: repo, issues: issues, issuesFetched: true, issueState: opts.State}
		return nil
	})
	if err != nil {
		return err
	}

	return s.persistSnapshot(ctx, owner, name, &snap, UpdateKindRepository, UpdateKindIssues)
}

// UpdatePullRequestsForRepository syncs the repository's pull requests along
// with their checks, statuses, and reviews.
func (s *SyncService) UpdatePullRequestsForRepository(ctx context.Context, owner, name string, opts driven.PullRequestListOptions) error {
	if err := validateRepoName(owner, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var snap repoSnapshot
	err := s.fetchWithFallback(ctx, owner, name, func(client driven.GitHubClient) error {
		repo, err := client.GetRepository(ctx, owner, name)
		if err != nil {
			return err
		}

		prs, err := fetchPRBundles(ctx, client, owner, name, opts)
		if err != nil {
			return err
		}

		snap = repoSnapshot{repo: repo, prs: prs, prsFetched: true, prState: opts.State}
		return nil
	})
	if err != nil {
		return err
	}

	return s.persistSnapshot(ctx, owner, name, &snap,
		UpdateKindRepository, UpdateKindPullRequests, UpdateKindChecks, UpdateKindReviews)
}

// UpdateReleasesForRepository syncs the repository's releases.
func (s *SyncService) UpdateReleasesForRepository(ctx context.Context, owner, name string) error {
	if err := validateRepoName(owner, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var snap repoSnapshot
	err := s.fetchWithFallback(ctx, owner, name, func(client driven.GitHubClient) error {
		repo, err := client.GetRepository(ctx, owner, name)
		if err != nil {
			return err
		}

		releases, err := client.ListReleases(ctx, owner, name)
		if err != nil {
			return err
		}

		snap = repoSnapshot{repo: repo, releases: releases, releasesFetched: true}
		return nil
	})
	if err != nil {
		return err
	}

	return s.persistSnapshot(ctx, owner, name, &snap, UpdateKindRepository, UpdateKindReleases)
}

// UpdateIssuesForSearch refreshes a saved issue search for the repository,
// recording result-set membership and pruning issues that dropped out.
func (s *SyncService) UpdateIssuesForSearch(ctx context.Context, owner, name, query string, opts driven.IssueListOptions) error {
	if err := validateRepoName(owner, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var repo *remote.Repository
	var issues []remote.Issue
	err := s.fetchWithFallback(ctx, owner, name, func(client driven.GitHubClient) error {
		var err error
		if repo, err = client.GetRepository(ctx, owner, name); err != nil {
			return err
		}

		searchOpts := opts
		searchOpts.Query = strings.TrimSpace(strings.Join([]string{opts.Query, query}, " "))
		issues, err = client.SearchIssues(ctx, owner, name, searchOpts)
		return err
	})
	if err != nil {
		return err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	repos := sqlite.NewRepos(tx)

	localRepo, err := repos.Repositories.GetOrCreateOrUpdate(ctx, *repo)
	if err != nil {
		return err
	}

	search, err := repos.Searches.GetOrCreate(ctx, localRepo.ID, query)
	if err != nil {
		return err
	}

	for _, ri := range issues {
		issue, err := repos.Issues.GetOrCreateOrUpdate(ctx, ri, localRepo.ID)
		if err != nil {
			return err
		}
		if err := repos.Searches.UpsertMember(ctx, search.ID, issue.ID); err != nil {
			return err
		}
	}

	if err := repos.Searches.PruneStaleMembers(ctx, search.ID); err != nil {
		return err
	}

	if err := s.finishPass(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit search sync for %s/%s: %w", owner, name, err)
	}

	s.bus.publish(UpdateEvent{Owner: owner, Name: name, Kinds: []UpdateKind{UpdateKindIssues, UpdateKindSearches}})
	return nil
}

// authoredBundle is one developer's fetched pull requests grouped by repository.
type authoredBundle struct {
	login string
	repos []remote.Repository
	prs   []prBundle
}

// UpdatePullRequestsForLoggedInDevelopers syncs the open pull requests
// authored by every logged-in account across all repositories they can see.
// A repository that fails to fetch is skipped with a warning; a rate limit
// aborts the whole pass.
func (s *SyncService) UpdatePullRequestsForLoggedInDevelopers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.identity.LoggedInAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing logged-in accounts: %w", err)
	}
	if len(accounts) == 0 {
		slog.Info("no logged-in accounts, skipping developer PR sync")
		return nil
	}

	var bundles []authoredBundle
	for _, account := range accounts {
		prs, repos, err := account.Client.ListAuthoredPullRequests(ctx, account.Login)
		if err != nil {
			if errors.Is(err, driven.ErrRateLimited) {
				return err
			}
			slog.Warn("skipping developer, authored PR search failed",
				"login", account.Login, "error", err)
			continue
		}

		bundle := authoredBundle{login: account.Login, repos: repos}
		for _, pr := range prs {
			pb := prBundle{pr: pr}

			owner, name, ok := ownerNameForPR(repos, pr)
			if ok && pr.HeadSHA != "" {
				if pb.runs, err = account.Client.ListCheckRuns(ctx, owner, name, pr.HeadSHA); err == nil {
					pb.suites, err = account.Client.ListCheckSuites(ctx, owner, name, pr.HeadSHA)
				}
				if err == nil {
					pb.combined, err = account.Client.GetCombinedStatus(ctx, owner, name, pr.HeadSHA)
				}
				if err == nil {
					pb.reviews, err = account.Client.ListReviews(ctx, owner, name, pr.Number)
				}
				if err != nil {
					if errors.Is(err, driven.ErrRateLimited) {
						return err
					}
					slog.Warn("skipping pull request, detail fetch failed",
						"login", account.Login, "repo", owner+"/"+name, "number", pr.Number, "error", err)
					continue
				}
				pb.detailed = true
			}

			bundle.prs = append(bundle.prs, pb)
		}

		bundles = append(bundles, bundle)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	repos := sqlite.NewRepos(tx)
	now := s.now()

	for _, bundle := range bundles {
		repoIDs := make(map[int64]int64, len(bundle.repos)) // remote repo id -> local id
		repoLabels := make(map[int64]string, len(bundle.repos))

		for _, rr := range bundle.repos {
			localRepo, err := repos.Repositories.GetOrCreateOrUpdate(ctx, rr)
			if err != nil {
				return err
			}
			repoIDs[rr.InternalID] = localRepo.ID
			repoLabels[rr.InternalID] = rr.Owner.Login + "/" + rr.Name
		}

		for _, pb := range bundle.prs {
			remoteRepoID, label, ok := repoForPR(bundle.repos, pb.pr, repoLabels)
			if !ok {
				continue
			}

			if err := s.persistPullRequest(ctx, repos, pb, repoIDs[remoteRepoID], label, now); err != nil {
				return err
			}
		}

		user, err := repos.Users.GetByLogin(ctx, bundle.login)
		if err != nil {
			return err
		}
		if user != nil {
			if err := repos.Users.SetDeveloper(ctx, user.ID, true); err != nil {
				return err
			}
		}
	}

	if err := s.finishPass(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit developer PR sync: %w", err)
	}

	s.bus.publish(UpdateEvent{Kinds: []UpdateKind{
		UpdateKindRepository, UpdateKindPullRequests, UpdateKindChecks, UpdateKindReviews,
	}})
	return nil
}

// persistSnapshot writes a fetched repository snapshot in one transaction,
// derives notifications, prunes, stamps the pass, commits, and publishes.
func (s *SyncService) persistSnapshot(ctx context.Context, owner, name string, snap *repoSnapshot, kinds ...UpdateKind) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	repos := sqlite.NewRepos(tx)
	now := s.now()
	label := owner + "/" + name

	localRepo, err := repos.Repositories.GetOrCreateOrUpdate(ctx, *snap.repo)
	if err != nil {
		return err
	}

	if snap.issuesFetched {
		keep := make([]int64, 0, len(snap.issues))
		for _, ri := range snap.issues {
			issue, err := repos.Issues.GetOrCreateOrUpdate(ctx, ri, localRepo.ID)
			if err != nil {
				return err
			}
			keep = append(keep, issue.InternalID)
		}

		// Only a full listing can prove an absent issue was deleted remotely.
		if snap.issueState == "all" {
			if err := repos.Issues.DeleteStale(ctx, localRepo.ID, keep); err != nil {
				return err
			}
		}
	}

	if snap.prsFetched {
		keep := make([]int64, 0, len(snap.prs))
		for _, pb := range snap.prs {
			if err := s.persistPullRequest(ctx, repos, pb, localRepo.ID, label, now); err != nil {
				return err
			}
			keep = append(keep, pb.pr.InternalID)
		}

		if snap.prState == "all" {
			if err := repos.PullRequests.DeleteStale(ctx, localRepo.ID, keep); err != nil {
				return err
			}
		}
	}

	if snap.releasesFetched {
		keep := make([]int64, 0, len(snap.releases))
		for _, rr := range snap.releases {
			release, err := repos.Releases.GetOrCreateOrUpdate(ctx, rr, localRepo.ID)
			if err != nil {
				return err
			}
			keep = append(keep, release.InternalID)
		}
		if err := repos.Releases.DeleteStale(ctx, localRepo.ID, keep); err != nil {
			return err
		}
	}

	if err := s.finishPass(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync for %s: %w", label, err)
	}

	s.bus.publish(UpdateEvent{Owner: owner, Name: name, Kinds: kinds})
	return nil
}

// persistPullRequest writes one pull request bundle: the PR row, its checks
// and statuses, its reviews, an appended status snapshot, and any
// notifications the transition warrants.
func (s *SyncService) persistPullRequest(ctx context.Context, repos *sqlite.Repos, pb prBundle, repositoryID int64, repoLabel string, now time.Time) error {
	pr, err := repos.PullRequests.GetOrCreateOrUpdate(ctx, pb.pr, repositoryID)
	if err != nil {
		return err
	}

	// Checks were only fetched for live heads.
	if !pb.detailed {
		return nil
	}

	if err := repos.Checks.ReplaceRunsForSHA(ctx, pr.HeadSHA, pb.runs); err != nil {
		return err
	}

	suiteIDs := make([]int64, 0, len(pb.suites))
	for _, rs := range pb.suites {
		if _, err := repos.Checks.GetOrCreateOrUpdateSuite(ctx, rs); err != nil {
			return err
		}
		suiteIDs = append(suiteIDs, rs.InternalID)
	}
	if err := repos.Checks.DeleteSuitesNotIn(ctx, pr.HeadSHA, suiteIDs); err != nil {
		return err
	}

	stateID := model.CommitStateNone
	if pb.combined != nil {
		combined, err := repos.Statuses.UpsertCombinedStatus(ctx, *pb.combined)
		if err != nil {
			return err
		}
		stateID = combined.StateID
	}

	// Reviews: remember what was cached, then replace and notify on the new.
	previous, err := repos.Reviews.ListForPullRequest(ctx, pr.ID)
	if err != nil {
		return err
	}
	previousIDs := make(map[int64]bool, len(previous))
	for _, rv := range previous {
		previousIDs[rv.InternalID] = true
	}

	if err := repos.Reviews.ReplaceForPullRequest(ctx, pr.ID, pb.reviews); err != nil {
		return err
	}

	for _, n := range newReviewNotifications(repoLabel, repositoryID, *pr, pb.pr.Author.Login, previousIDs, pb.reviews, now) {
		if err := s.insertNotification(ctx, repos, n); err != nil {
			return err
		}
	}

	// Append the status snapshot and compare against the previous one.
	status, conclusion, err := repos.Checks.AggregateSuiteStateForSHA(ctx, pr.HeadSHA, excludedAutomationAppID)
	if err != nil {
		return err
	}

	prev, err := repos.Statuses.GetLatestForPullRequest(ctx, pr.ID)
	if err != nil {
		return err
	}

	snapshot, err := repos.Statuses.InsertPullRequestStatus(ctx, model.PullRequestStatus{
		PullRequestID: pr.ID,
		HeadSHA:       pr.HeadSHA,
		StatusID:      status,
		ConclusionID:  conclusion,
		StateID:       stateID,
		DetailsURL:    checkDetailsURL(pb.runs, pb.suites),
		HTMLURL:       pr.HTMLURL,
		TimeOccurred:  now,
	})
	if err != nil {
		return err
	}

	if shouldNotifyFailure(*snapshot, prev, pr.UpdatedAt, now) {
		if err := s.insertNotification(ctx, repos, failureNotification(repoLabel, repositoryID, *pr, *snapshot)); err != nil {
			return err
		}
	} else if shouldNotifySuccess(*snapshot, prev, pr.UpdatedAt, now) {
		if err := s.insertNotification(ctx, repos, successNotification(repoLabel, repositoryID, *pr, *snapshot)); err != nil {
			return err
		}
	}

	return nil
}

// insertNotification writes a notification unless an identical one was
// already recorded.
func (s *SyncService) insertNotification(ctx context.Context, repos *sqlite.Repos, n model.Notification) error {
	exists, err := repos.Notifications.Exists(ctx, n.TypeID, n.Identifier, n.Result)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := repos.Notifications.Insert(ctx, n); err != nil {
		return err
	}

	slog.Info("notification recorded", "type", int(n.TypeID), "title", n.Title)
	return nil
}

// finishPass runs the end-of-pass maintenance inside the transaction: prune
// rows no pull request references anymore, apply retention windows, and stamp
// the pass time.
func (s *SyncService) finishPass(ctx context.Context, repos *sqlite.Repos) error {
	now := s.now()

	if err := repos.Checks.DeleteUnreferencedRuns(ctx); err != nil {
		return err
	}
	if err := repos.Checks.DeleteUnreferencedSuites(ctx); err != nil {
		return err
	}
	if err := repos.Statuses.DeleteUnreferenced(ctx); err != nil {
		return err
	}
	if err := repos.Statuses.DeleteHistoryOlderThan(ctx, now.Add(-statusHistoryRetention)); err != nil {
		return err
	}
	if err := repos.Notifications.DeleteOlderThan(ctx, now.Add(-notificationRetention)); err != nil {
		return err
	}
	if err := repos.Searches.DeleteSearchesUpdatedBefore(ctx, now.Add(-searchRetention)); err != nil {
		return err
	}

	return repos.Meta.StampLastUpdated(ctx, now)
}

func validateRepoName(owner, name string) error {
	if owner == "" || name == "" || strings.ContainsAny(owner, "/ ") || strings.ContainsAny(name, "/ ") {
		return fmt.Errorf("%q/%q: %w", owner, name, driven.ErrInvalidRepoName)
	}
	return nil
}

func ownerNameForPR(repos []remote.Repository, pr remote.PullRequest) (string, string, bool) {
	for _, r := range repos {
		if strings.HasPrefix(pr.HTMLURL, r.HTMLURL+"/") {
			return r.Owner.Login, r.Name, true
		}
	}
	return "", "", false
}

func repoForPR(repos []remote.Repository, pr remote.PullRequest, labels map[int64]string) (int64, string, bool) {
	for _, r := range repos {
		if strings.HasPrefix(pr.HTMLURL, r.HTMLURL+"/") {
			return r.InternalID, labels[r.InternalID], true
		}
	}
	return 0, "", false
}
