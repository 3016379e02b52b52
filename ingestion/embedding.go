package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/secondbrain/ai"
)

// embeddingProcessor fills in chunk vectors.
type embeddingProcessor struct {
	generator *ai.Generator
	logger    *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(generator *ai.Generator, logger *slog.Logger) (processor, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		generator: generator,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

func (ep *embeddingProcessor) name() string {
	return "embeddings"
}

// process embeds every chunk in one batch. A backend failure leaves zero
// vectors in place and does not fail the document; reembedding repairs them.
func (ep *embeddingProcessor) process(ctx context.Context, j *job) error {
	texts := make([]string, len(j.chunks))
	for i, chunk := range j.chunks {
		texts[i] = chunk.Content
	}

	ep.logger.Debug("generating embeddings", "document", j.doc.Id, "chunks", len(texts))
	vectors, err := ep.generator.EmbedBatch(ctx, texts)
	if err != nil {
		if !errors.Is(err, ai.ErrEmbeddingFailed) {
			return err
		}
		ep.logger.Warn("storing zero vectors", "document", j.doc.Id, "err", err)
	}

	if len(vectors) != len(j.chunks) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(j.chunks), len(vectors))
	}
	for i := range vectors {
		j.chunks[i].Vector = vectors[i]
	}
	return nil
}
