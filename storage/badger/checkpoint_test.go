package badger

import (
	"context"
	"testing"

	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	cp, err := repos.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, cp, "fresh store has no checkpoint")

	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reembed", LastId: 7}))
	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reindex", LastId: 2}))
	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reembed", LastId: 12}))

	cp, err = repos.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.ID(12), cp.LastId)
	assert.False(t, cp.UpdatedAt.IsZero())

	require.NoError(t, repos.Checkpoints.DeleteCheckpoint(ctx, "reembed"))
	require.NoError(t, repos.Checkpoints.DeleteCheckpoint(ctx, "reembed"), "deleting twice is fine")

	cp, err = repos.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, cp)

	other, err := repos.Checkpoints.LoadCheckpoint(ctx, "reindex")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, core.ID(2), other.LastId)
}

func TestCheckpointRepository_InvalidInput(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	assert.ErrorIs(t, repos.Checkpoints.SaveCheckpoint(ctx, nil), storage.ErrInvalidQuery)
	assert.ErrorIs(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{LastId: 1}), storage.ErrInvalidQuery)
	_, err := repos.Checkpoints.LoadCheckpoint(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repos.Checkpoints.LoadCheckpoint(cancelled, "reembed")
	assert.ErrorIs(t, err, context.Canceled)
}
