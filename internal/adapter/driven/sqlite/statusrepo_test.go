package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ericfisherdev/ghmirror/internal/domain/model"
	"github.com/ericfisherdev/ghmirror/internal/domain/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRepo_UpsertCombinedStatus(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	first, err := repos.Statuses.UpsertCombinedStatus(ctx, remote.CombinedStatus{HeadSHA: "abc123", State: "pending"})
	require.NoError(t, err)
	assert.Equal(t, model.CommitStatePending, first.StateID)

	// Same state again: zero writes.
	second, err := repos.Statuses.UpsertCombinedStatus(ctx, remote.CombinedStatus{HeadSHA: "abc123", State: "pending"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TimeUpdated, second.TimeUpdated)

	third, err := repos.Statuses.UpsertCombinedStatus(ctx, remote.CombinedStatus{HeadSHA: "abc123", State: "success"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, model.CommitStateSuccess, third.StateID)
}

func TestStatusRepo_HistoryIsAppendOnly(t *testing.T) {
	repos := setupTestRepos(t)
	repoID := insertTestRepository(t, repos)
	ctx := context.Background()

	pr, err := repos.PullRequests.GetOrCreateOrUpdate(ctx, makeRemotePR(200, 5, "pr", "abc123"), repoID)
	require.NoError(t, err)

	snapshots := []model.PullRequestStatus{
		{PullRequestID: pr.ID, HeadSHA: "abc123", StatusID: model.CheckStatusInProgress},
		{PullRequestID: pr.ID, HeadSHA: "abc123", StatusID: model.CheckStatusCompleted, ConclusionID: model.CheckConclusionFailure},
		{PullRequestID: pr.ID, HeadSHA: "def456", StatusID: model.CheckStatusCompleted, ConclusionID: model.CheckConclusionSuccess},
	}
	for _, s := range snapshots {
		_, err := repos.Statuses.InsertPullRequestStatus(ctx, s)
		require.NoError(t, err)
	}

	history, err := repos.Statuses.ListForPullRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, history, 3, "every snapshot must survive, history is never updated in place")

	latest, err := repos.Statuses.GetLatestForPullRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "def456", latest.HeadSHA)
	assert.Equal(t, model.CheckConclusionSuccess, latest.ConclusionID)
}

func TestStatusRepo_GetLatestForPullRequest_NoHistory(t *testing.T) {
	repos := setupTestRepos(t)

	latest, err := repos.Statuses.GetLatestForPullRequest(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestStatusRepo_DeleteHistoryOlderThan_KeepsNewestPerPR(t *testing.T) {
	repos := setupTestRepos(t)
	repoID := insertTestRepository(t, repos)
	ctx := context.Background()

	pr, err := repos.PullRequests.GetOrCreateOrUpdate(ctx, makeRemotePR(200, 5, "pr", "abc123"), repoID)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	for i := 0; i < 3; i++ {
		_, err := repos.Statuses.InsertPullRequestStatus(ctx, model.PullRequestStatus{
			PullRequestID: pr.ID,
			HeadSHA:       "abc123",
			StatusID:      model.CheckStatusCompleted,
			TimeOccurred:  old.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	require.NoError(t, repos.Statuses.DeleteHistoryOlderThan(ctx, cutoff))

	history, err := repos.Statuses.ListForPullRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "the newest snapshot must survive retention so transitions stay detectable")
}

func TestStatusRepo_DeleteUnreferenced(t *testing.T) {
	repos := setupTestRepos(t)
	repoID := insertTestRepository(t, repos)
	ctx := context.Background()

	pr, err := repos.PullRequests.GetOrCreateOrUpdate(ctx, makeRemotePR(200, 5, "pr", "live-sha"), repoID)
	require.NoError(t, err)

	_, err = repos.Statuses.InsertPullRequestStatus(ctx, model.PullRequestStatus{
		PullRequestID: pr.ID, HeadSHA: "live-sha", StatusID: model.CheckStatusQueued,
	})
	require.NoError(t, err)
	_, err = repos.Statuses.InsertPullRequestStatus(ctx, model.PullRequestStatus{
		PullRequestID: pr.ID + 1000, HeadSHA: "dead-sha", StatusID: model.CheckStatusQueued,
	})
	require.NoError(t, err)

	_, err = repos.Statuses.UpsertCombinedStatus(ctx, remote.CombinedStatus{HeadSHA: "live-sha", State: "success"})
	require.NoError(t, err)
	_, err = repos.Statuses.UpsertCombinedStatus(ctx, remote.CombinedStatus{HeadSHA: "dead-sha", State: "failure"})
	require.NoError(t, err)

	require.NoError(t, repos.Statuses.DeleteUnreferenced(ctx))

	live, err := repos.Statuses.ListForPullRequest(ctx, pr.ID)
	require.NoError(t, err)
	assert.Len(t, live, 1)

	dead, err := repos.Statuses.ListForPullRequest(ctx, pr.ID+1000)
	require.NoError(t, err)
	assert.Empty(t, dead)

	combined, err := repos.Statuses.GetCombinedStatus(ctx, "dead-sha")
	require.NoError(t, err)
	assert.Nil(t, combined)
}

func TestPullRequestStatus_FailedAndSucceeded(t *testing.T) {
	failed := model.PullRequestStatus{
		StatusID:     model.CheckStatusCompleted,
		ConclusionID: model.CheckConclusionFailure,
	}
	assert.True(t, failed.Failed())
	assert.False(t, failed.Succeeded())

	succeeded := model.PullRequestStatus{
		StatusID:     model.CheckStatusCompleted,
		ConclusionID: model.CheckConclusionSuccess,
		StateID:      model.CommitStateNone,
	}
	assert.True(t, succeeded.Succeeded())
	assert.False(t, succeeded.Failed())

	// Legacy status API only, no check suites at all.
	legacy := model.PullRequestStatus{StateID: model.CommitStateSuccess}
	assert.True(t, legacy.Succeeded())

	pending := model.PullRequestStatus{
		StatusID: model.CheckStatusInProgress,
		StateID:  model.CommitStatePending,
	}
	assert.False(t, pending.Failed())
	assert.False(t, pending.Succeeded())
}
