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

package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

const (
	// DefaultBatchSize is the default number of chunks per batch.
	DefaultBatchSize = 100

	// ProcessorType names the reembedding checkpoint.
	ProcessorType = "reembed"
)

// ChunkIterator visits every chunk in ID order, in batches.
// With a checkpoint repository it starts after the last recorded chunk and
// records progress after each batch fn accepts.
type ChunkIterator struct {
	chunks      storage.ChunkRepository
	checkpoints storage.CheckpointRepository
	batchSize   int
}

// NewChunkIterator creates an iterator. checkpoints may be nil.
func NewChunkIterator(chunks storage.ChunkRepository, checkpoints storage.CheckpointRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{
		chunks:      chunks,
		checkpoints: checkpoints,
		batchSize:   batchSize,
	}
}

// Resume returns the ID after which iteration starts, 0 without a checkpoint.
func (it *ChunkIterator) Resume(ctx context.Context) (core.ID, error) {
	if it.checkpoints == nil {
		return 0, nil
	}
	cp, err := it.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	if err != nil {
		return 0, fmt.Errorf("loading checkpoint: %w", err)
	}
	if cp == nil {
		return 0, nil
	}
	return cp.LastId, nil
}

// ForEach calls fn for each batch. Iteration stops at the first error.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	after, err := it.Resume(ctx)
	if err != nil {
		return err
	}

	return it.chunks.ForEachChunk(ctx, after, it.batchSize, func(batch []*core.Chunk) error {
		if err := fn(batch); err != nil {
			return err
		}
		if it.checkpoints == nil {
			return nil
		}
		return it.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
			ProcessorType: ProcessorType,
			LastId:        batch[len(batch)-1].Id,
		})
	})
}

// Reset forgets the checkpoint so the next run starts from the first chunk.
func (it *ChunkIterator) Reset(ctx context.Context) error {
	if it.checkpoints == nil {
		return nil
	}
	return it.checkpoints.DeleteCheckpoint(ctx, ProcessorType)
}
