package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaDataRepo_SetAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	got, err := repos.Meta.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repos.Meta.Set(ctx, "greeting", "hello"))
	require.NoError(t, repos.Meta.Set(ctx, "greeting", "hello again"))

	got, err = repos.Meta.Get(ctx, "greeting")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello again", got.Value)
}

func TestMetaDataRepo_LastUpdated(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	// No sync pass has completed yet.
	got, err := repos.Meta.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	stamp := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
	require.NoError(t, repos.Meta.StampLastUpdated(ctx, stamp))

	got, err = repos.Meta.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Equal(t, stamp, got)
}
