package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// DefaultTagColor is assigned to tags created without a color.
const DefaultTagColor = "#3b82f6"

const maxTagCreateAttempts = 5

// TagRepository implements storage.TagRepository for BadgerDB.
// Tag IDs are content-based, derived from the normalized name.
type TagRepository struct {
	backend *Backend
}

var _ storage.TagRepository = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository.
func NewTagRepository(backend *Backend) *TagRepository {
	return &TagRepository{backend: backend}
}

// Close is a no-op; the backend owns the database.
func (r *TagRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *TagRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetOrCreateTag returns the tag named name, creating it if needed.
// Conflicting concurrent creations are retried.
func (r *TagRepository) GetOrCreateTag(ctx context.Context, name, color string, autoGenerated bool) (*core.Tag, error) {
	if color == "" {
		color = DefaultTagColor
	}
	candidate := &core.Tag{
		Id:            core.TagID(name),
		Name:          core.NormalizeTagName(name),
		Color:         color,
		AutoGenerated: autoGenerated,
	}
	if err := core.ValidateTag(candidate); err != nil {
		return nil, err
	}

	var result *core.Tag
	var err error
	for attempt := 0; attempt < maxTagCreateAttempts; attempt++ {
		err = r.backend.WithTx(func(tx *badger.Txn) error {
			existing, err := readTag(tx, candidate.Id)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}

			candidate.InsertedAt = time.Now().UTC()
			if err := tx.Set(makeTagKey(candidate.Id), storage.MarshalTag(candidate)); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			result = candidate
			return nil
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		r.backend.logger.Debug("tag creation conflict, retrying", "tag", candidate.Name, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetTag retrieves a tag by ID.
func (r *TagRepository) GetTag(ctx context.Context, id core.ID) (*core.Tag, error) {
	var result *core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTag(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: tag %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetTagByName retrieves a tag by name, case-insensitively.
func (r *TagRepository) GetTagByName(ctx context.Context, name string) (*core.Tag, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidTag, core.ErrEmptyTagName)
	}
	tag, err := r.GetTag(ctx, core.TagID(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: tag %q", storage.ErrNotFound, name)
		}
		return nil, err
	}
	return tag, nil
}

// GetTags retrieves multiple tags by ID, skipping missing ones.
func (r *TagRepository) GetTags(ctx context.Context, ids ...core.ID) ([]*core.Tag, error) {
	result := make([]*core.Tag, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			tag, err := readTag(tx, id)
			if err != nil {
				return err
			}
			if tag != nil {
				result = append(result, tag)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListTags returns all tags ordered by name.
func (r *TagRepository) ListTags(ctx context.Context) ([]*core.Tag, error) {
	var result []*core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tagPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				tag, err := storage.UnmarshalTag(val)
				if err != nil {
					return err
				}
				result = append(result, tag)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b *core.Tag) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

// PopularTags returns up to limit tags by descending document count.
// Ties are broken by name. Tags with no documents are omitted.
func (r *TagRepository) PopularTags(ctx context.Context, limit int) ([]*storage.TagCount, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}

	var result []*storage.TagCount
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		counts := make(map[core.ID]int)
		err := scanPrefix(tx, []byte(documentTagPrefix), func(key []byte) error {
			counts[core.ID(keyPart(key, documentTagPrefix, 0))]++
			return nil
		})
		if err != nil {
			return err
		}

		for id, n := range counts {
			tag, err := readTag(tx, id)
			if err != nil {
				return err
			}
			if tag == nil {
				continue
			}
			result = append(result, &storage.TagCount{Tag: tag, Documents: n})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b *storage.TagCount) int {
		if c := cmp.Compare(b.Documents, a.Documents); c != 0 {
			return c
		}
		return strings.Compare(a.Tag.Name, b.Tag.Name)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// readTag reads a tag, returning nil if it doesn't exist.
func readTag(tx *badger.Txn, id core.ID) (*core.Tag, error) {
	item, err := tx.Get(makeTagKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var tag *core.Tag
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		tag, unmarshalErr = storage.UnmarshalTag(val)
		return unmarshalErr
	})
	return tag, err
}
