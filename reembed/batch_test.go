package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor_Process(t *testing.T) {
	repos := setupRepos(t)
	chunks := addChunks(t, repos, 4)
	embedder := &stubEmbedder{}
	bp := NewBatchProcessor(repos.Chunks, newGenerator(t, embedder), Backoff{MaxAttempts: 3, BaseDelay: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, bp.Process(ctx, chunks))
	assert.Equal(t, int32(1), embedder.calls.Load(), "one backend call per batch")

	for _, chunk := range chunks {
		stored, err := repos.Chunks.GetChunk(ctx, chunk.Id)
		require.NoError(t, err)
		require.Len(t, stored.Vector, testDimensions)
		assert.InDelta(t, 1.0/3, stored.Vector[0], 1e-6)
		assert.InDelta(t, 2.0/3, stored.Vector[1], 1e-6)
		assert.InDelta(t, 2.0/3, stored.Vector[2], 1e-6)
		assert.Equal(t, chunk.Content, stored.Content)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	repos := setupRepos(t)
	embedder := &stubEmbedder{}
	bp := NewBatchProcessor(repos.Chunks, newGenerator(t, embedder), Backoff{MaxAttempts: 1})

	require.NoError(t, bp.Process(context.Background(), nil))
	assert.Zero(t, embedder.calls.Load())
}

func TestBatchProcessor_Retries(t *testing.T) {
	repos := setupRepos(t)
	chunks := addChunks(t, repos, 2)
	embedder := &stubEmbedder{err: errors.New("rate limited")}
	embedder.failures.Store(2)
	bp := NewBatchProcessor(repos.Chunks, newGenerator(t, embedder), Backoff{MaxAttempts: 3, BaseDelay: time.Millisecond})

	require.NoError(t, bp.Process(context.Background(), chunks))
	assert.Equal(t, int32(3), embedder.calls.Load())
}

func TestBatchProcessor_PersistentFailureKeepsVectors(t *testing.T) {
	repos := setupRepos(t)
	chunks := addChunks(t, repos, 2)
	embedder := &stubEmbedder{err: errors.New("backend down")}
	embedder.failures.Store(100)
	bp := NewBatchProcessor(repos.Chunks, newGenerator(t, embedder), Backoff{MaxAttempts: 2, BaseDelay: time.Millisecond})
	ctx := context.Background()

	err := bp.Process(ctx, chunks)
	require.Error(t, err)
	assert.ErrorContains(t, err, "backend down")

	stored, err := repos.Chunks.GetChunk(ctx, chunks[0].Id)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, stored.Vector, "failed batch is not written")
}
