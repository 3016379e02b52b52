package reembed

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage/badger"
	"github.com/stretchr/testify/require"
)

const testDimensions = 3

// stubEmbedder returns the unnormalized vector {1, 2, 2} for every text and can
// fail a number of calls first.
type stubEmbedder struct {
	failures atomic.Int32
	calls    atomic.Int32
	err      error
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 2}
	}
	return out, nil
}

func newGenerator(t *testing.T, embedder ai.Embedder) *ai.Generator {
	t.Helper()
	gen, err := ai.NewGenerator(embedder, ai.NewConfig(ai.WithDimensions(testDimensions), ai.WithQueryCacheSize(0)))
	require.NoError(t, err)
	t.Cleanup(gen.Close)
	return gen
}

func setupRepos(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

// addChunks stores a document with n chunks carrying a placeholder vector.
func addChunks(t *testing.T, repos *badger.Repositories, n int) []*core.Chunk {
	t.Helper()
	ctx := context.Background()

	docs, err := repos.Documents.AddDocuments(ctx, &core.Document{
		SourceType: core.SourceTypeText,
		Title:      "notes",
		Content:    "placeholder",
	})
	require.NoError(t, err)

	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			DocumentId: docs[0].Id,
			Content:    fmt.Sprintf("passage %d", i),
			Index:      i,
			Vector:     []float32{0, 0, 1},
		}
	}
	added, err := repos.Chunks.AddChunks(ctx, chunks...)
	require.NoError(t, err)
	return added
}
