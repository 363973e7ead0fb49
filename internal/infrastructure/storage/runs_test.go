package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_RunLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	okID, err := store.StartRun(ctx, RunTransactions)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, okID, map[string]int{"match": 2}))

	failID, err := store.StartRun(ctx, RunBalances)
	require.NoError(t, err)
	require.NoError(t, store.FailRun(ctx, failID, errors.New("sink unavailable")))

	ok, err := store.GetRun(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, ok.Status)
	assert.Equal(t, RunTransactions, ok.Kind)
	assert.JSONEq(t, `{"match":2}`, ok.Summary)
	assert.NotNil(t, ok.CompletedAt)
	assert.Empty(t, ok.Error)

	failed, err := store.GetRun(ctx, failID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, failed.Status)
	assert.Equal(t, "sink unavailable", failed.Error)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, failID, runs[0].ID, "newest first")
}

func TestStorage_GetRun_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = store.CompleteRun(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}
