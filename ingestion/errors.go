package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrTagRepositoryRequired is returned when a tag repository is not provided.
	ErrTagRepositoryRequired = errors.New("tag repository required")

	// ErrGeneratorRequired is returned when an embedding generator is not provided.
	ErrGeneratorRequired = errors.New("embedding generator required")

	// ErrInvalidChunkerConfig is returned for unusable chunk sizes.
	ErrInvalidChunkerConfig = errors.New("invalid chunker config")

	// ErrProcessingFailed wraps the cause of a document that ended in the failed state.
	ErrProcessingFailed = errors.New("document processing failed")
)
