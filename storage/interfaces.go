package storage

import (
	"context"
	"time"

	"github.com/poiesic/secondbrain/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// DocumentRepository provides operations for managing documents.
type DocumentRepository interface {
	Repository
	// AddDocuments adds one or more documents to storage.
	// Generates IDs from a sequence, sets IngestedAt and UpdatedAt, defaults
	// CreatedAt to now and Status to pending when unset.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// UpdateDocuments updates existing documents and their indices.
	// CreatedAt is immutable: the stored value is always kept.
	// Returns ErrNotFound if any document doesn't exist.
	UpdateDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// DeleteDocuments removes documents, their chunks and all index entries.
	// Returns ErrNotFound if any document doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments returns documents newest first (by CreatedAt).
	ListDocuments(ctx context.Context, offset, limit int) ([]*core.Document, error)

	// GetDocumentsByDateRange returns documents with start <= CreatedAt <= end, oldest first.
	GetDocumentsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Document, error)

	// FindDocuments returns the completed documents matching filters, ordered by ID.
	// Nil or empty filters match every completed document.
	FindDocuments(ctx context.Context, filters *core.Filters) ([]*core.Document, error)

	// CountDocuments returns the number of stored documents and their total size in bytes.
	CountDocuments(ctx context.Context) (count int, totalBytes int64, err error)
}

// SimilarChunk is a chunk, its parent document and the chunk's cosine
// similarity to a query vector.
type SimilarChunk struct {
	core.Candidate
	Similarity float64
}

// ChunkRepository provides operations for managing chunks.
type ChunkRepository interface {
	Repository
	// AddChunks adds chunks to storage. Generates IDs from a sequence and sets CreatedAt.
	// Returns ErrNotFound if a parent document doesn't exist.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks replaces existing chunks (typically with new vectors).
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunksByDocument returns a document's chunks ordered by Index.
	GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// DeleteChunksByDocument removes every chunk of a document.
	DeleteChunksByDocument(ctx context.Context, documentID core.ID) error

	// FindCandidates returns the chunks of completed documents matching filters,
	// ordered by document ID then chunk index.
	FindCandidates(ctx context.Context, filters *core.Filters) ([]*core.Candidate, error)

	// FindSimilar scores the chunks matching filters against vector by cosine
	// similarity. Chunks without a vector score 0 and are kept. Results with
	// similarity below minSimilarity are dropped when minSimilarity > 0.
	// Results are ordered by similarity descending, ties in candidate order,
	// and capped at limit.
	FindSimilar(ctx context.Context, vector []float32, filters *core.Filters, minSimilarity float64, limit int) ([]*SimilarChunk, error)

	// ForEachChunk calls fn with batches of chunks whose ID is greater than after,
	// in ID order. Iteration stops at the first error from fn.
	ForEachChunk(ctx context.Context, after core.ID, batchSize int, fn func([]*core.Chunk) error) error

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// TagCount pairs a tag with the number of documents carrying it.
type TagCount struct {
	Tag       *core.Tag
	Documents int
}

// TagRepository provides operations for managing tags.
type TagRepository interface {
	Repository
	// GetOrCreateTag returns the tag with the given name, creating it if needed.
	// Tag IDs derive from the normalized name so concurrent creation is safe.
	GetOrCreateTag(ctx context.Context, name, color string, autoGenerated bool) (*core.Tag, error)

	// GetTag retrieves a tag by ID.
	// Returns ErrNotFound if the tag doesn't exist.
	GetTag(ctx context.Context, id core.ID) (*core.Tag, error)

	// GetTagByName retrieves a tag by name, case-insensitively.
	// Returns ErrNotFound if the tag doesn't exist.
	GetTagByName(ctx context.Context, name string) (*core.Tag, error)

	// GetTags retrieves multiple tags by ID, skipping missing ones.
	GetTags(ctx context.Context, ids ...core.ID) ([]*core.Tag, error)

	// ListTags returns all tags ordered by name.
	ListTags(ctx context.Context) ([]*core.Tag, error)

	// PopularTags returns up to limit tags by descending document count.
	PopularTags(ctx context.Context, limit int) ([]*TagCount, error)
}

// CheckpointRepository persists processor progress.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint for its processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for a processor type, or nil if none exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// QueryStats summarizes answered queries.
type QueryStats struct {
	Count           int
	AvgResponseTime time.Duration
}

// DailyCount is the number of queries answered on one day.
type DailyCount struct {
	Day   time.Time
	Count int
}

// HistoryStore persists conversation exchanges.
type HistoryStore interface {
	// AddExchange stores an exchange. Assigns Id and ConversationId when empty
	// and CreatedAt when zero.
	AddExchange(ctx context.Context, exchange *core.Exchange) (*core.Exchange, error)

	// RecentExchanges returns up to limit most recent exchanges of a
	// conversation in chronological order.
	RecentExchanges(ctx context.Context, conversationID string, limit int) ([]*core.Exchange, error)

	// ListExchanges returns exchanges newest first. Limit is capped at MaxPageSize.
	ListExchanges(ctx context.Context, offset, limit int) ([]*core.Exchange, error)

	// QueryStats summarizes all stored exchanges.
	QueryStats(ctx context.Context) (*QueryStats, error)

	// QueryTrends returns per-day exchange counts since the given time, oldest first.
	QueryTrends(ctx context.Context, since time.Time) ([]DailyCount, error)

	// Close releases the underlying database.
	Close() error
}

// MaxPageSize caps paginated listings.
const MaxPageSize = 100
