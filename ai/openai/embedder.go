package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/secondbrain/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// embedBatchSize bounds the number of chunks sent in one embeddings request.
const embedBatchSize = 64

// Embedder turns passages and queries into vectors through an
// OpenAI-compatible /embeddings endpoint. Dimension fitting and zero-vector
// substitution happen in ai.Generator, not here.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(embedBatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder returns a standalone embedder for config.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a search query.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query with %s: %w", e.model, err)
	}
	e.logger.Debug("embedded query", "length", len(text), "dimensions", len(vector))
	return vector, nil
}

// EmbedTexts embeds passages, embedBatchSize per request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d passages with %s: %w", len(texts), e.model, err)
	}
	e.logger.Debug("embedded passages", "count", len(texts))
	return vectors, nil
}
