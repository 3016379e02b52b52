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

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// CheckpointRepository keeps one resume point per long-running processor,
// such as the reembedder walking every chunk.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{backend: backend}
}

// SaveCheckpoint records how far a processor got, replacing its previous checkpoint.
// UpdatedAt is stamped on save.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if checkpoint == nil {
		return fmt.Errorf("%w: nil checkpoint", storage.ErrInvalidQuery)
	}
	key, err := checkpointKey(ctx, checkpoint.ProcessorType)
	if err != nil {
		return err
	}

	checkpoint.UpdatedAt = time.Now().UTC()
	value := storage.MarshalCheckpoint(checkpoint)
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint returns the saved checkpoint of a processor, or nil when it
// has none (a fresh run).
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error) {
	key, err := checkpointKey(ctx, processorType)
	if err != nil {
		return nil, err
	}

	var checkpoint *core.Checkpoint
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			checkpoint, err = storage.UnmarshalCheckpoint(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// DeleteCheckpoint forgets a processor's progress once its run completes.
// Deleting a missing checkpoint is not an error.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, processorType string) error {
	key, err := checkpointKey(ctx, processorType)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func checkpointKey(ctx context.Context, processorType string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if processorType == "" {
		return nil, fmt.Errorf("%w: checkpoint needs a processor type", storage.ErrInvalidQuery)
	}
	return makeCheckpointKey(processorType), nil
}
