// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrEmbeddingFailed marks a vector that was replaced by zeros because the backend failed.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Generator maps text to vectors of a fixed dimension.
//
// The returned vector is always exactly Dimensions long. Empty text maps to the
// zero vector. A backend failure also maps to the zero vector, and the failure
// is reported through the returned error so callers that care (search) can
// tell a real vector from a substituted one. Callers that only need a vector
// may ignore the error.
//
// Generator is safe for concurrent use.
type Generator struct {
	embedder Embedder
	dim      int
	timeout  time.Duration
	cache    *ristretto.Cache[string, []float32]
	logger   *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator) error

// WithLogger sets the generator's logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) error {
		if logger != nil {
			g.logger = logger.With("component", "embedding-generator")
		}
		return nil
	}
}

// NewGenerator wraps embedder with the dimension, timeout and cache settings from config.
func NewGenerator(embedder Embedder, config *Config, opts ...GeneratorOption) (*Generator, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Dimensions < 1 {
		return nil, fmt.Errorf("invalid embedding dimension %d", config.Dimensions)
	}

	g := &Generator{
		embedder: embedder,
		dim:      config.Dimensions,
		timeout:  config.Timeout,
		logger:   slog.Default().With("component", "embedding-generator"),
	}

	if config.QueryCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
			NumCounters:        int64(config.QueryCacheSize) * 10,
			MaxCost:            int64(config.QueryCacheSize),
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("creating query cache: %w", err)
		}
		g.cache = cache
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			g.Close()
			return nil, err
		}
	}
	return g, nil
}

// Dimensions returns the fixed vector length.
func (g *Generator) Dimensions() int {
	return g.dim
}

// Embed returns the vector for text.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	if key == "" {
		return g.zero(), nil
	}

	if g.cache != nil {
		if vec, ok := g.cache.Get(key); ok {
			return slices.Clone(vec), nil
		}
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	vec, err := g.embedder.EmbedText(callCtx, text)
	if err != nil {
		g.logger.Warn("embedding backend failed, using zero vector", "length", len(text), "err", err)
		return g.zero(), fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	vec = g.fit(vec)
	if g.cache != nil {
		g.cache.Set(key, slices.Clone(vec), 1)
		g.cache.Wait()
	}
	return vec, nil
}

// EmbedBatch returns one vector per text, in input order.
// Empty texts get zero vectors without reaching the backend. If the backend
// fails, every non-empty text gets a zero vector and the error is returned.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	pending := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = g.zero()
			continue
		}
		pending = append(pending, text)
		positions = append(positions, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	vectors, err := g.embedder.EmbedTexts(callCtx, pending)
	if err == nil && len(vectors) != len(pending) {
		err = fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), len(pending))
	}
	if err != nil {
		g.logger.Warn("batch embedding failed, using zero vectors", "count", len(pending), "err", err)
		for _, pos := range positions {
			out[pos] = g.zero()
		}
		return out, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	for i, pos := range positions {
		out[pos] = g.fit(vectors[i])
	}
	return out, nil
}

// Close releases the query cache.
func (g *Generator) Close() {
	if g.cache != nil {
		g.cache.Close()
	}
}

func (g *Generator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

func (g *Generator) zero() []float32 {
	return make([]float32, g.dim)
}

// fit truncates or zero-pads vec to the configured dimension.
func (g *Generator) fit(vec []float32) []float32 {
	if len(vec) == g.dim {
		return vec
	}
	if len(vec) > g.dim {
		g.logger.Debug("truncating embedding", "from", len(vec), "to", g.dim)
		return vec[:g.dim:g.dim]
	}
	g.logger.Debug("padding embedding", "from", len(vec), "to", g.dim)
	out := make([]float32, g.dim)
	copy(out, vec)
	return out
}

// Similarity returns the cosine similarity of a and b.
// Returns 0 when either vector has zero norm. Vectors of different length are
// compared over their common prefix.
func Similarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	// A single sqrt over the product keeps Similarity(v, v) exactly 1.
	sim := dot / math.Sqrt(normA*normB)
	return max(-1, min(1, sim))
}

// Match is a candidate position and its similarity to the query.
type Match struct {
	Index int
	Score float64
}

// MostSimilar returns the k candidates closest to query, by descending
// similarity. Ties keep candidate order.
func MostSimilar(query []float32, candidates [][]float32, k int) []Match {
	if k <= 0 || len(candidates) == 0 {
		return []Match{}
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Index: i, Score: Similarity(query, c)}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
