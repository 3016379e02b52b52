package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRepository_AddAndGet(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText}, "alpha", "beta", "gamma")

	chunks, err := repos.Chunks.GetChunksByDocument(ctx, doc.Id)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, doc.Id, chunk.DocumentId)
		assert.NotZero(t, chunk.Id)
	}
	assert.Equal(t, "beta", chunks[1].Content)

	got, err := repos.Chunks.GetChunk(ctx, chunks[2].Id)
	require.NoError(t, err)
	assert.Equal(t, "gamma", got.Content)
	assert.Equal(t, []float32{3, 1}, got.Vector)

	_, err = repos.Chunks.GetChunk(ctx, 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChunkRepository_AddRequiresParent(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.Chunks.AddChunks(ctx, &core.Chunk{DocumentId: 77, Content: "orphan"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repos.Chunks.AddChunks(ctx, &core.Chunk{DocumentId: 77, Content: "  "})
	assert.ErrorIs(t, err, core.ErrInvalidChunk)
}

func TestChunkRepository_UpdateKeepsPlacement(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText}, "alpha")
	chunks, err := repos.Chunks.GetChunksByDocument(ctx, doc.Id)
	require.NoError(t, err)

	chunk := chunks[0]
	chunk.Vector = []float32{9, 9}
	chunk.Index = 5
	chunk.DocumentId = 999
	_, err = repos.Chunks.UpdateChunks(ctx, chunk)
	require.NoError(t, err)

	got, err := repos.Chunks.GetChunk(ctx, chunk.Id)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, got.Vector)
	assert.Equal(t, 0, got.Index)
	assert.Equal(t, doc.Id, got.DocumentId)

	_, err = repos.Chunks.UpdateChunks(ctx, &core.Chunk{Id: 4242, Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChunkRepository_FindCandidates(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	completed := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText, Title: "done"}, "one", "two")

	pending, err := repos.Documents.AddDocuments(ctx, &core.Document{SourceType: core.SourceTypeText})
	require.NoError(t, err)
	_, err = repos.Chunks.AddChunks(ctx, &core.Chunk{DocumentId: pending[0].Id, Content: "hidden"})
	require.NoError(t, err)

	candidates, err := repos.Chunks.FindCandidates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, completed.Id, c.Document.Id)
		assert.Equal(t, "done", c.Document.Title)
	}
	assert.Equal(t, "one", candidates[0].Chunk.Content)
	assert.Equal(t, "two", candidates[1].Chunk.Content)
}

func TestChunkRepository_FindSimilar(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText, CreatedAt: jan}, "a", "b", "c")
	chunks, err := repos.Chunks.GetChunksByDocument(ctx, doc.Id)
	require.NoError(t, err)

	vectors := [][]float32{{1, 0}, {0, 1}, {0, 0}}
	for i, chunk := range chunks {
		chunk.Vector = vectors[i]
	}
	_, err = repos.Chunks.UpdateChunks(ctx, chunks...)
	require.NoError(t, err)

	t.Run("ranked by similarity", func(t *testing.T) {
		results, err := repos.Chunks.FindSimilar(ctx, []float32{1, 0.1}, nil, 0, 10)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].Chunk.Content)
		assert.Equal(t, "b", results[1].Chunk.Content)
		assert.Equal(t, "c", results[2].Chunk.Content, "zero vector scores 0 but is kept")
		assert.Equal(t, 0.0, results[2].Similarity)
		assert.Equal(t, doc.Id, results[0].Document.Id)
	})

	t.Run("threshold", func(t *testing.T) {
		results, err := repos.Chunks.FindSimilar(ctx, []float32{1, 0.1}, nil, 0.5, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].Chunk.Content)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := repos.Chunks.FindSimilar(ctx, []float32{1, 0.1}, nil, 0, 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)

		_, err = repos.Chunks.FindSimilar(ctx, []float32{1, 0}, nil, 0, 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("filters apply", func(t *testing.T) {
		results, err := repos.Chunks.FindSimilar(ctx, []float32{1, 0}, &core.Filters{SourceTypes: []core.SourceType{core.SourceTypePDF}}, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestChunkRepository_ForEachChunk(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText}, "1", "2", "3", "4", "5")

	var batches [][]core.ID
	err := repos.Chunks.ForEachChunk(ctx, 0, 2, func(chunks []*core.Chunk) error {
		ids := make([]core.ID, len(chunks))
		for i, c := range chunks {
			ids[i] = c.Id
		}
		batches = append(batches, ids)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)

	resumeAfter := batches[1][1]
	var rest []*core.Chunk
	err = repos.Chunks.ForEachChunk(ctx, resumeAfter, 10, func(chunks []*core.Chunk) error {
		rest = append(rest, chunks...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, batches[2][0], rest[0].Id)

	err = repos.Chunks.ForEachChunk(ctx, 0, 2, func(chunks []*core.Chunk) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	err = repos.Chunks.ForEachChunk(ctx, 0, 0, func([]*core.Chunk) error { return nil })
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestChunkRepository_DeleteChunksByDocument(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	keep := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText}, "keep")
	drop := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText}, "drop", "drop too")

	require.NoError(t, repos.Chunks.DeleteChunksByDocument(ctx, drop.Id))

	count, err := repos.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	chunks, err := repos.Chunks.GetChunksByDocument(ctx, keep.Id)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}
