package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// BatchProcessor embeds batches of chunks and stores the new vectors.
type BatchProcessor struct {
	chunks    storage.ChunkRepository
	generator *ai.Generator
	backoff   Backoff
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(chunks storage.ChunkRepository, generator *ai.Generator, backoff Backoff) *BatchProcessor {
	return &BatchProcessor{
		chunks:    chunks,
		generator: generator,
		backoff:   backoff,
	}
}

// Process replaces the vectors of chunks. Vectors are normalized to unit
// length. A batch the backend keeps failing on is not written, so chunks never
// end up with substituted zero vectors.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var vectors [][]float32
	err := bp.backoff.Retry(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = bp.generator.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("embedding %d chunks after %d attempts: %w", len(chunks), bp.backoff.MaxAttempts, err)
	}

	for i, chunk := range chunks {
		chunk.Vector = NormalizeVector(vectors[i])
	}
	if _, err := bp.chunks.UpdateChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("updating chunks: %w", err)
	}
	return nil
}
