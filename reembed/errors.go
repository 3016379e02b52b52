package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a Backoff allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	ErrChunkRepositoryRequired = errors.New("chunk repository is required")
	ErrGeneratorRequired       = errors.New("embedding generator is required")
)
