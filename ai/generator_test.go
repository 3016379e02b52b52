package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns vectors of a configurable length and counts backend calls.
type stubEmbedder struct {
	dim   int
	err   error
	calls atomic.Int32
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vector(text)
	}
	return out, nil
}

func (s *stubEmbedder) vector(text string) []float32 {
	vec := make([]float32, s.dim)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec
}

func newTestGenerator(t *testing.T, embedder Embedder, opts ...ConfigOption) *Generator {
	t.Helper()
	cfg := NewConfig(append([]ConfigOption{WithDimensions(8), WithQueryCacheSize(0)}, opts...)...)
	gen, err := NewGenerator(embedder, cfg)
	require.NoError(t, err)
	t.Cleanup(gen.Close)
	return gen
}

func TestNewGenerator_Validation(t *testing.T) {
	_, err := NewGenerator(nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewGenerator(&stubEmbedder{dim: 4}, NewConfig(WithDimensions(0)))
	assert.Error(t, err)
}

func TestGenerator_Embed_FixedDimension(t *testing.T) {
	tests := []struct {
		name       string
		backendDim int
	}{
		{name: "exact", backendDim: 8},
		{name: "longer is truncated", backendDim: 20},
		{name: "shorter is padded", backendDim: 3},
		{name: "empty backend result is padded", backendDim: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newTestGenerator(t, &stubEmbedder{dim: tt.backendDim})

			vec, err := gen.Embed(context.Background(), "supervised learning")
			require.NoError(t, err)
			assert.Len(t, vec, 8)
			if tt.backendDim > 0 && tt.backendDim < 8 {
				assert.Equal(t, float32(0), vec[7])
			}
		})
	}
}

func TestGenerator_Embed_EmptyText(t *testing.T) {
	stub := &stubEmbedder{dim: 8}
	gen := newTestGenerator(t, stub)

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := gen.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, make([]float32, 8), vec)
	}
	assert.Equal(t, int32(0), stub.calls.Load(), "backend must not be called for empty text")
}

func TestGenerator_Embed_BackendFailure(t *testing.T) {
	gen := newTestGenerator(t, &stubEmbedder{err: errors.New("connection refused")})

	vec, err := gen.Embed(context.Background(), "supervised learning")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, make([]float32, 8), vec)
}

func TestGenerator_Embed_Cache(t *testing.T) {
	stub := &stubEmbedder{dim: 8}
	gen := newTestGenerator(t, stub, WithQueryCacheSize(16))

	first, err := gen.Embed(context.Background(), "supervised learning")
	require.NoError(t, err)
	second, err := gen.Embed(context.Background(), "  supervised learning ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), stub.calls.Load())

	// Callers may mutate the result without corrupting the cache.
	second[0] = -1
	third, err := gen.Embed(context.Background(), "supervised learning")
	require.NoError(t, err)
	assert.Equal(t, first[0], third[0])
}

func TestGenerator_EmbedBatch(t *testing.T) {
	t.Run("order preserved and empties zero-filled", func(t *testing.T) {
		stub := &stubEmbedder{dim: 12}
		gen := newTestGenerator(t, stub)

		texts := []string{"alpha", "", "gamma ray", "  "}
		vectors, err := gen.EmbedBatch(context.Background(), texts)
		require.NoError(t, err)
		require.Len(t, vectors, len(texts))

		for _, vec := range vectors {
			assert.Len(t, vec, 8)
		}
		assert.Equal(t, float32(len("alpha")), vectors[0][0])
		assert.Equal(t, make([]float32, 8), vectors[1])
		assert.Equal(t, float32(len("gamma ray")), vectors[2][0])
		assert.Equal(t, make([]float32, 8), vectors[3])
		assert.Equal(t, int32(1), stub.calls.Load())
	})

	t.Run("all empty skips backend", func(t *testing.T) {
		stub := &stubEmbedder{dim: 8}
		gen := newTestGenerator(t, stub)

		vectors, err := gen.EmbedBatch(context.Background(), []string{"", " "})
		require.NoError(t, err)
		assert.Len(t, vectors, 2)
		assert.Equal(t, int32(0), stub.calls.Load())
	})

	t.Run("failure yields zero vectors", func(t *testing.T) {
		gen := newTestGenerator(t, &stubEmbedder{err: errors.New("timeout")})

		vectors, err := gen.EmbedBatch(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
		require.Len(t, vectors, 2)
		for _, vec := range vectors {
			assert.Equal(t, make([]float32, 8), vec)
		}
	})
}

func TestSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	zero := []float32{0, 0, 0, 0}

	assert.InDelta(t, 1.0, Similarity(v, v), 1e-9)
	assert.Equal(t, 0.0, Similarity(v, zero))
	assert.Equal(t, 0.0, Similarity(zero, zero))
	assert.InDelta(t, -1.0, Similarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Similarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Similarity(nil, v))
}

func TestSimilarity_SelfIsExactlyOne(t *testing.T) {
	vectors := [][]float32{
		{1, 1},
		{1, 2, 3},
		{0.3, -1.2, 4.5, 0.01},
		{0.1, 0.1, 0.1},
		{-7, 0, 0.5, 1e-3, 42},
		{1e-20, 3e-20},
	}
	for _, v := range vectors {
		assert.Equal(t, 1.0, Similarity(v, v), "%v", v)
	}
}

func TestMostSimilar(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},  // 0.0
		{1, 0},  // 1.0
		{1, 1},  // 0.707
		{2, 0},  // 1.0, tie with index 1
		{-1, 0}, // -1.0
	}

	matches := MostSimilar(query, candidates, 3)
	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, 3, matches[1].Index)
	assert.Equal(t, 2, matches[2].Index)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)

	assert.Len(t, MostSimilar(query, candidates, 10), 5)
	assert.Empty(t, MostSimilar(query, candidates, 0))
	assert.Empty(t, MostSimilar(query, nil, 3))
}
