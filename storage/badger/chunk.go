package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks adds chunks to storage.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		parents := make(map[core.ID]bool)
		for _, chunk := range chunks {
			if !parents[chunk.DocumentId] {
				doc, err := readDocument(tx, chunk.DocumentId)
				if err != nil {
					return err
				}
				if doc == nil {
					return fmt.Errorf("%w: document %d", storage.ErrNotFound, chunk.DocumentId)
				}
				parents[chunk.DocumentId] = true
			}

			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			chunk.Id = core.ID(id)
			chunk.CreatedAt = time.Now().UTC()

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			indexKey := makeChunkDocumentKey(chunk.DocumentId, chunk.Index, chunk.Id)
			if err := tx.Set(indexKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateChunks replaces existing chunks. DocumentId, Index and CreatedAt keep
// their stored values.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			old, err := readChunk(tx, chunk.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, chunk.Id)
			}
			chunk.DocumentId = old.DocumentId
			chunk.Index = old.Index
			chunk.CreatedAt = old.CreatedAt
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetChunksByDocument returns a document's chunks ordered by Index.
func (r *ChunkRepository) GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocumentChunks(tx, documentID)
		return err
	}, false)
	return result, err
}

// DeleteChunksByDocument removes every chunk of a document.
func (r *ChunkRepository) DeleteChunksByDocument(ctx context.Context, documentID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteDocumentChunks(tx, documentID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FindCandidates returns the chunks of completed documents matching filters.
func (r *ChunkRepository) FindCandidates(ctx context.Context, filters *core.Filters) ([]*core.Candidate, error) {
	if err := core.ValidateFilters(filters); err != nil {
		return nil, err
	}

	var result []*core.Candidate
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = findCandidates(ctx, tx, filters)
		return err
	}, false)
	return result, err
}

// FindSimilar scores matching chunks against vector by cosine similarity.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, filters *core.Filters, minSimilarity float64, limit int) ([]*storage.SimilarChunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}
	if err := core.ValidateFilters(filters); err != nil {
		return nil, err
	}

	var results []*storage.SimilarChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		candidates, err := findCandidates(ctx, tx, filters)
		if err != nil {
			return err
		}

		results = make([]*storage.SimilarChunk, 0, len(candidates))
		for _, c := range candidates {
			// A missing vector scores 0 rather than excluding the chunk.
			similarity := ai.Similarity(vector, c.Chunk.Vector)
			if minSimilarity > 0 && similarity < minSimilarity {
				continue
			}
			results = append(results, &storage.SimilarChunk{Candidate: *c, Similarity: similarity})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *storage.SimilarChunk) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ForEachChunk calls fn with batches of chunks with ID greater than after, in ID order.
// Each batch is read in its own transaction so fn may write to the store.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, after core.ID, batchSize int, fn func([]*core.Chunk) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", storage.ErrInvalidQuery, batchSize)
	}

	cursor := after
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []*core.Chunk
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(chunkPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Seek(makeChunkKey(cursor + 1)); iter.Valid() && len(batch) < batchSize; iter.Next() {
				err := iter.Item().Value(func(val []byte) error {
					chunk, err := storage.UnmarshalChunk(val)
					if err != nil {
						return err
					}
					batch = append(batch, chunk)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		}, false)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		cursor = batch[len(batch)-1].Id
	}
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), func(key []byte) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// Helper functions

// readChunk reads a chunk, returning nil if it doesn't exist.
func readChunk(tx *badger.Txn, id core.ID) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// documentChunkIDs returns a document's chunk IDs in index order.
func documentChunkIDs(tx *badger.Txn, documentID core.ID) ([]core.ID, error) {
	var ids []core.ID
	err := scanPrefix(tx, makePartialChunkDocumentKey(documentID), func(key []byte) error {
		ids = append(ids, core.ID(keyPart(key, chunkDocumentPrefix, 2)))
		return nil
	})
	return ids, err
}

// readDocumentChunks reads a document's chunks in index order.
func readDocumentChunks(tx *badger.Txn, documentID core.ID) ([]*core.Chunk, error) {
	ids, err := documentChunkIDs(tx, documentID)
	if err != nil {
		return nil, err
	}
	chunks := make([]*core.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := readChunk(tx, id)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// deleteDocumentChunks removes a document's chunks and their index entries.
func deleteDocumentChunks(tx *badger.Txn, documentID core.ID) error {
	var indexKeys [][]byte
	var ids []core.ID
	err := scanPrefix(tx, makePartialChunkDocumentKey(documentID), func(key []byte) error {
		indexKeys = append(indexKeys, key)
		ids = append(ids, core.ID(keyPart(key, chunkDocumentPrefix, 2)))
		return nil
	})
	if err != nil {
		return err
	}

	for i, key := range indexKeys {
		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Delete(makeChunkKey(ids[i])); err != nil {
			return err
		}
	}
	return nil
}

// findCandidates pairs the chunks of completed matching documents with their parent.
func findCandidates(ctx context.Context, tx *badger.Txn, filters *core.Filters) ([]*core.Candidate, error) {
	ids, err := matchingDocumentIDs(tx, filters)
	if err != nil {
		return nil, err
	}

	var candidates []*core.Candidate
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := readDocument(tx, id)
		if err != nil {
			return nil, err
		}
		if doc == nil || doc.Status != core.StatusCompleted {
			continue
		}
		chunks, err := readDocumentChunks(tx, id)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			candidates = append(candidates, &core.Candidate{Chunk: chunk, Document: doc})
		}
	}
	return candidates, nil
}
