package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/secondbrain/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it *ChunkIterator) ([][]core.ID, error) {
	t.Helper()
	var batches [][]core.ID
	err := it.ForEach(context.Background(), func(batch []*core.Chunk) error {
		ids := make([]core.ID, len(batch))
		for i, c := range batch {
			ids[i] = c.Id
		}
		batches = append(batches, ids)
		return nil
	})
	return batches, err
}

func TestChunkIterator_Batches(t *testing.T) {
	repos := setupRepos(t)
	chunks := addChunks(t, repos, 7)

	batches, err := collect(t, NewChunkIterator(repos.Chunks, nil, 3))
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, chunks[6].Id, batches[2][0])
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	repos := setupRepos(t)
	it := NewChunkIterator(repos.Chunks, nil, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)

	batches, err := collect(t, it)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestChunkIterator_Checkpoint(t *testing.T) {
	repos := setupRepos(t)
	chunks := addChunks(t, repos, 5)
	ctx := context.Background()
	errStop := errors.New("stop")

	it := NewChunkIterator(repos.Chunks, repos.Checkpoints, 2)

	// Fail on the second batch: only the first is recorded.
	calls := 0
	err := it.ForEach(ctx, func([]*core.Chunk) error {
		calls++
		if calls == 2 {
			return errStop
		}
		return nil
	})
	assert.ErrorIs(t, err, errStop)

	resume, err := it.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, chunks[1].Id, resume)

	batches, err := collect(t, it)
	require.NoError(t, err)
	assert.Equal(t, [][]core.ID{{chunks[2].Id, chunks[3].Id}, {chunks[4].Id}}, batches)

	require.NoError(t, it.Reset(ctx))
	resume, err = it.Resume(ctx)
	require.NoError(t, err)
	assert.Zero(t, resume)
}
