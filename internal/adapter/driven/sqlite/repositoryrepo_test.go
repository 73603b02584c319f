package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryRepo_GetOrCreateOrUpdate_Creates(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	got, err := repos.Repositories.GetOrCreateOrUpdate(ctx, makeRemoteRepo(7, "octocat", "hello-world"))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.NotZero(t, got.ID)
	assert.Equal(t, int64(7), got.InternalID)
	assert.Equal(t, "hello-world", got.Name)
	assert.NotZero(t, got.OwnerID, "owner must be resolved to a local user row")

	owner, err := repos.Users.GetByID(ctx, got.OwnerID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "octocat", owner.Login)
}

func TestRepositoryRepo_GetOrCreateOrUpdate_SkipsUnchanged(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	rr := makeRemoteRepo(7, "octocat", "hello-world")
	first, err := repos.Repositories.GetOrCreateOrUpdate(ctx, rr)
	require.NoError(t, err)

	second, err := repos.Repositories.GetOrCreateOrUpdate(ctx, rr)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TimeUpdated, second.TimeUpdated, "same remote timestamps must cause zero writes")
}

func TestRepositoryRepo_GetOrCreateOrUpdate_UpdatesOnNewerPush(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	rr := makeRemoteRepo(7, "octocat", "hello-world")
	first, err := repos.Repositories.GetOrCreateOrUpdate(ctx, rr)
	require.NoError(t, err)

	rr.PushedAt = rr.PushedAt.Add(time.Hour)
	rr.Description = "now with docs"
	second, err := repos.Repositories.GetOrCreateOrUpdate(ctx, rr)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "now with docs", second.Description)
	assert.True(t, second.PushedAt.After(first.PushedAt))
}

func TestRepositoryRepo_GetByOwnerAndName_CaseInsensitive(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	_, err := repos.Repositories.GetOrCreateOrUpdate(ctx, makeRemoteRepo(7, "OctoCat", "Hello-World"))
	require.NoError(t, err)

	got, err := repos.Repositories.GetByOwnerAndName(ctx, "octocat", "hello-world")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hello-World", got.Name)
}

func TestRepositoryRepo_GetByOwnerAndName_Absent(t *testing.T) {
	repos := setupTestRepos(t)

	got, err := repos.Repositories.GetByOwnerAndName(context.Background(), "octocat", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryRepo_ListAll(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	_, err := repos.Repositories.GetOrCreateOrUpdate(ctx, makeRemoteRepo(7, "octocat", "zebra"))
	require.NoError(t, err)
	_, err = repos.Repositories.GetOrCreateOrUpdate(ctx, makeRemoteRepo(8, "octocat", "aardvark"))
	require.NoError(t, err)

	all, err := repos.Repositories.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "aardvark", all[0].Name)
	assert.Equal(t, "zebra", all[1].Name)
}
