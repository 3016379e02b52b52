package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepositories opens in-memory repositories closed at test end.
func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

// addCompletedDocument stores a document and walks it to the completed state.
func addCompletedDocument(t *testing.T, repos *Repositories, doc *core.Document, chunks ...string) *core.Document {
	t.Helper()
	ctx := context.Background()

	added, err := repos.Documents.AddDocuments(ctx, doc)
	require.NoError(t, err)
	doc = added[0]

	for i, content := range chunks {
		_, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
			DocumentId: doc.Id,
			Content:    content,
			Index:      i,
			Vector:     []float32{float32(i + 1), 1},
		})
		require.NoError(t, err)
	}

	for _, status := range []core.ProcessingStatus{core.StatusProcessing, core.StatusCompleted} {
		doc.Status = status
		_, err = repos.Documents.UpdateDocuments(ctx, doc)
		require.NoError(t, err)
	}
	return doc
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.GreaterOrEqual(t, backend.DiskSize(), int64(0))
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return assert.AnError
		})
		assert.Equal(t, assert.AnError, err)
	})
}

func TestNextID_SkipsZero(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("test_sequence")
	require.NoError(t, err)
	defer seq.Release()

	first, err := nextID(seq)
	require.NoError(t, err)
	second, err := nextID(seq)
	require.NoError(t, err)

	assert.NotZero(t, first)
	assert.Equal(t, first+1, second)
}

func TestScanPrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.WithTx(func(tx *badger.Txn) error {
		for i := 1; i <= 5; i++ {
			if err := tx.Set(makeTagKey(core.ID(i)), []byte{1}); err != nil {
				return err
			}
		}
		require.NoError(t, tx.Set(makeChunkKey(1), []byte{1}))
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	t.Run("visits only prefixed keys in order", func(t *testing.T) {
		var seen []uint64
		err := backend.WithTx(func(tx *badger.Txn) error {
			return scanPrefix(tx, []byte(tagPrefix), func(key []byte) error {
				seen = append(seen, keyPart(key, tagPrefix, 0))
				return nil
			})
		}, false)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seen)
	})

	t.Run("stops early", func(t *testing.T) {
		count := 0
		err := backend.WithTx(func(tx *badger.Txn) error {
			return scanPrefix(tx, []byte(tagPrefix), func(key []byte) error {
				count++
				if count == 2 {
					return errStopScan
				}
				return nil
			})
		}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestCheckpointRepository_Basic(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	cp, err := repos.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reembed", LastId: 42}))

	cp, err = repos.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.ID(42), cp.LastId)
	assert.WithinDuration(t, time.Now(), cp.UpdatedAt, time.Minute)

	require.NoError(t, repos.Checkpoints.DeleteCheckpoint(ctx, "reembed"))
	cp, err = repos.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, cp)

	assert.ErrorIs(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{}), storage.ErrInvalidQuery)
}
