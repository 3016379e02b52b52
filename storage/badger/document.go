package badger

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddDocuments adds one or more documents to storage.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			doc.Id = core.ID(id)

			now := time.Now().UTC()
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
			doc.IngestedAt = now
			doc.UpdatedAt = now
			if doc.Status == 0 {
				doc.Status = core.StatusPending
			}
			if doc.Size == 0 {
				doc.Size = int64(len(doc.Content))
			}

			if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
				return err
			}
			if err := setDocumentIndices(tx, doc); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateDocuments updates existing documents.
func (r *DocumentRepository) UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			old, err := readDocument(tx, doc.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: document %d", storage.ErrNotFound, doc.Id)
			}

			if old.Status != doc.Status {
				if err := core.ValidateTransition(old.Status, doc.Status); err != nil {
					return err
				}
			}

			doc.CreatedAt = old.CreatedAt
			doc.IngestedAt = old.IngestedAt
			doc.UpdatedAt = time.Now().UTC()
			if err := core.ValidateDocument(doc); err != nil {
				return err
			}

			if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
				return err
			}

			if old.SourceType != doc.SourceType || !slices.Equal(old.Tags, doc.Tags) {
				if err := deleteDocumentIndices(tx, old); err != nil {
					return err
				}
				if err := setDocumentIndices(tx, doc); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocuments removes documents by their IDs, cascading to their chunks.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
			}

			if err := deleteDocumentChunks(tx, id); err != nil {
				return err
			}
			if err := deleteDocumentIndices(tx, doc); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListDocuments returns documents newest first.
func (r *DocumentRepository) ListDocuments(ctx context.Context, offset, limit int) ([]*core.Document, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d, limit %d", storage.ErrInvalidQuery, offset, limit)
	}
	limit = min(limit, storage.MaxPageSize)

	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(documentDatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the largest possible date key.
		seek := append([]byte(documentDatePrefix), bytes.Repeat([]byte{0xff}, 16)...)

		skipped := 0
		for iter.Seek(seek); iter.Valid() && len(results) < limit; iter.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			id := core.ID(keyPart(iter.Item().Key(), documentDatePrefix, 1))
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetDocumentsByDateRange returns documents with start <= CreatedAt <= end.
func (r *DocumentRepository) GetDocumentsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := documentsInRange(tx, start, end)
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// FindDocuments returns the completed documents matching filters.
func (r *DocumentRepository) FindDocuments(ctx context.Context, filters *core.Filters) ([]*core.Document, error) {
	if err := core.ValidateFilters(filters); err != nil {
		return nil, err
	}

	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := matchingDocumentIDs(tx, filters)
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil && doc.Status == core.StatusCompleted {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// CountDocuments returns the number of stored documents and their total size.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, int64, error) {
	var count int
	var total int64
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				count++
				total += doc.Size
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return count, total, err
}

// Helper functions shared by the repositories

// readDocument reads a document, returning nil if it doesn't exist.
func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

// setDocumentIndices writes the date, source type and tag index entries.
func setDocumentIndices(tx *badger.Txn, doc *core.Document) error {
	value := storage.MarshalID(doc.Id)
	if err := tx.Set(makeDocumentDateKey(doc.CreatedAt, doc.Id), value); err != nil {
		return err
	}
	if err := tx.Set(makeDocumentSourceKey(doc.SourceType, doc.Id), value); err != nil {
		return err
	}
	for _, tagID := range doc.Tags {
		if err := tx.Set(makeDocumentTagKey(tagID, doc.Id), value); err != nil {
			return err
		}
	}
	return nil
}

// deleteDocumentIndices removes the index entries written by setDocumentIndices.
func deleteDocumentIndices(tx *badger.Txn, doc *core.Document) error {
	if err := tx.Delete(makeDocumentDateKey(doc.CreatedAt, doc.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makeDocumentSourceKey(doc.SourceType, doc.Id)); err != nil {
		return err
	}
	for _, tagID := range doc.Tags {
		if err := tx.Delete(makeDocumentTagKey(tagID, doc.Id)); err != nil {
			return err
		}
	}
	return nil
}

// documentsInRange returns IDs of documents created within [start, end], oldest first.
func documentsInRange(tx *badger.Txn, start, end time.Time) ([]core.ID, error) {
	var ids []core.ID
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(documentDatePrefix)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Seek(makePartialDocumentDateKey(start)); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if timeFromKeyPart(keyPart(key, documentDatePrefix, 0)).After(end) {
			break
		}
		ids = append(ids, core.ID(keyPart(key, documentDatePrefix, 1)))
	}
	return ids, nil
}

// indexedDocumentIDs collects the document IDs stored under an index prefix
// whose document ID is the second key part.
func indexedDocumentIDs(tx *badger.Txn, prefix []byte, indexPrefix string, into map[core.ID]bool) error {
	return scanPrefix(tx, prefix, func(key []byte) error {
		into[core.ID(keyPart(key, indexPrefix, 1))] = true
		return nil
	})
}

// matchingDocumentIDs resolves filters against the indices. Each filter
// dimension narrows the result; within a dimension any listed value matches.
// Returned IDs are sorted ascending.
func matchingDocumentIDs(tx *badger.Txn, filters *core.Filters) ([]core.ID, error) {
	var selected map[core.ID]bool

	narrow := func(next map[core.ID]bool) {
		if selected == nil {
			selected = next
			return
		}
		for id := range selected {
			if !next[id] {
				delete(selected, id)
			}
		}
	}

	if !filters.IsEmpty() {
		if filters.DateRange != nil {
			ids, err := documentsInRange(tx, filters.DateRange.Start, filters.DateRange.End)
			if err != nil {
				return nil, err
			}
			inRange := make(map[core.ID]bool, len(ids))
			for _, id := range ids {
				inRange[id] = true
			}
			narrow(inRange)
		}

		if len(filters.SourceTypes) > 0 {
			bySource := make(map[core.ID]bool)
			for _, st := range filters.SourceTypes {
				if err := indexedDocumentIDs(tx, makePartialDocumentSourceKey(st), documentSourcePrefix, bySource); err != nil {
					return nil, err
				}
			}
			narrow(bySource)
		}

		if len(filters.Tags) > 0 {
			byTag := make(map[core.ID]bool)
			for _, name := range filters.Tags {
				if err := indexedDocumentIDs(tx, makePartialDocumentTagKey(core.TagID(name)), documentTagPrefix, byTag); err != nil {
					return nil, err
				}
			}
			narrow(byTag)
		}
	}

	if selected == nil {
		selected = make(map[core.ID]bool)
		err := scanPrefix(tx, []byte(documentPrefix), func(key []byte) error {
			selected[core.ID(keyPart(key, documentPrefix, 0))] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	ids := make([]core.ID, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
