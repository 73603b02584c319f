package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
)

// RepoRef names one repository to mirror.
type RepoRef struct {
	Owner string
	Name  string
}

// SearchRef names one saved issue search to keep refreshed.
type SearchRef struct {
	Owner string
	Name  string
	Query string
}

// refreshRequest represents a manual refresh trigger. An empty repo means
// refresh everything.
type refreshRequest struct {
	repo *RepoRef
	done chan error
}

// SyncLoop drives the SyncService on a fixed interval and serves manual
// refresh requests in between ticks.
type SyncLoop struct {
	service   *SyncService
	repos     []RepoRef
	searches  []SearchRef
	interval  time.Duration
	refreshCh chan refreshRequest
}

// NewSyncLoop creates a SyncLoop over the configured repositories and saved
// searches.
func NewSyncLoop(service *SyncService, repos []RepoRef, searches []SearchRef, interval time.Duration) *SyncLoop {
	return &SyncLoop{
		service:   service,
		repos:     repos,
		searches:  searches,
		interval:  interval,
		refreshCh: make(chan refreshRequest),
	}
}

// RunOnce performs a single full sync cycle without starting the loop.
func (l *SyncLoop) RunOnce(ctx context.Context) error {
	return l.syncAll(ctx)
}

// Start begins the sync loop. It runs an immediate pass, then syncs on the
// configured interval, and listens for manual refresh requests. Start blocks
// until the context is canceled.
func (l *SyncLoop) Start(ctx context.Context) {
	if err := l.syncAll(ctx); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync loop stopped")
			return
		case <-ticker.C:
			if err := l.syncAll(ctx); err != nil {
				slog.Error("sync cycle failed", "error", err)
			}
		case req := <-l.refreshCh:
			req.done <- l.handleRefresh(ctx, req)
		}
	}
}

// Refresh triggers a manual sync, bypassing the interval. A nil repo syncs
// everything. It blocks until the sync completes or the context is canceled.
func (l *SyncLoop) Refresh(ctx context.Context, repo *RepoRef) error {
	done := make(chan error, 1)
	req := refreshRequest{repo: repo, done: done}

	select {
	case l.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SyncLoop) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.repo == nil {
		return l.syncAll(ctx)
	}

	slog.Info("manual refresh requested", "repo", req.repo.Owner+"/"+req.repo.Name)
	return l.service.UpdateAllDataForRepository(ctx, req.repo.Owner, req.repo.Name)
}

// syncAll runs one full cycle: every mirrored repository, every saved search,
// then the logged-in developers' authored PRs. A rate limit stops the cycle
// early; per-repo failures are logged and the cycle moves on.
func (l *SyncLoop) syncAll(ctx context.Context) error {
	started := time.Now()
	slog.Info("sync cycle starting", "repos", len(l.repos), "searches", len(l.searches))

	for _, repo := range l.repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := l.service.UpdateAllDataForRepository(ctx, repo.Owner, repo.Name); err != nil {
			if errors.Is(err, driven.ErrRateLimited) {
				return err
			}
			slog.Warn("repository sync failed", "repo", repo.Owner+"/"+repo.Name, "error", err)
		}
	}

	for _, search := range l.searches {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := l.service.UpdateIssuesForSearch(ctx, search.Owner, search.Name, search.Query, driven.IssueListOptions{}); err != nil {
			if errors.Is(err, driven.ErrRateLimited) {
				return err
			}
			slog.Warn("search sync failed",
				"repo", search.Owner+"/"+search.Name, "query", search.Query, "error", err)
		}
	}

	if err := l.service.UpdatePullRequestsForLoggedInDevelopers(ctx); err != nil {
		if errors.Is(err, driven.ErrRateLimited) {
			return err
		}
		slog.Warn("developer PR sync failed", "error", err)
	}

	slog.Info("sync cycle complete", "duration", time.Since(started).Round(time.Millisecond))
	return nil
}
