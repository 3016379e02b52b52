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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks embedded per backend call.
	BatchSize int

	// ReportInterval is how often to report progress, in chunks.
	ReportInterval int

	// MaxRetries is the number of attempts per batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// MaxRetryDelay caps a single backoff wait.
	MaxRetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		MaxRetryDelay:  30 * time.Second,
	}
}

// Result summarizes a run.
type Result struct {
	Processed int
	// ResumedAfter is the checkpointed chunk the run started after, 0 for a full run.
	ResumedAfter core.ID
	Elapsed      time.Duration
}

// Reembedder recomputes the vectors of all stored chunks.
type Reembedder struct {
	chunks      storage.ChunkRepository
	checkpoints storage.CheckpointRepository
	generator   *ai.Generator
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithCheckpoints makes runs resumable.
func WithCheckpoints(checkpoints storage.CheckpointRepository) Option {
	return func(r *Reembedder) {
		r.checkpoints = checkpoints
	}
}

// WithProgress writes progress lines to w, typically os.Stderr.
func WithProgress(w io.Writer) Option {
	return func(r *Reembedder) {
		r.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReembedder creates a reembedder. A nil config uses DefaultConfig.
func NewReembedder(chunks storage.ChunkRepository, generator *ai.Generator, config *Config, opts ...Option) (*Reembedder, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	r := &Reembedder{
		chunks:    chunks,
		generator: generator,
		config:    config,
		progress:  io.Discard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembed")
	return r, nil
}

// Run reembeds every chunk not covered by the checkpoint. A completed run
// clears the checkpoint; a failed or cancelled one leaves it in place.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	iterator := NewChunkIterator(r.chunks, r.checkpoints, r.config.BatchSize)
	processor := NewBatchProcessor(r.chunks, r.generator, Backoff{
		MaxAttempts: r.config.MaxRetries,
		BaseDelay:   r.config.RetryDelay,
		MaxDelay:    r.config.MaxRetryDelay,
	})

	total, err := r.chunks.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	resumed, err := iterator.Resume(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{ResumedAfter: resumed}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in database (0 chunks)\n")
		return result, nil
	}
	if resumed != 0 {
		fmt.Fprintf(r.progress, "Resuming after chunk %d\n", resumed)
	}
	fmt.Fprintf(r.progress, "Reembedding up to %d chunks at %d dimensions (batch size: %d)\n",
		total, r.generator.Dimensions(), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, "chunks", total, r.config.ReportInterval)
	tracker.Start()

	err = iterator.ForEach(ctx, func(batch []*core.Chunk) error {
		if err := processor.Process(ctx, batch); err != nil {
			return err
		}
		result.Processed += len(batch)
		tracker.Update(result.Processed)
		return nil
	})
	result.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", result.Processed, "err", err)
		return result, err
	}

	tracker.Finish()
	if err := iterator.Reset(ctx); err != nil {
		return result, fmt.Errorf("clearing checkpoint: %w", err)
	}

	rate := 0.0
	if secs := result.Elapsed.Seconds(); secs > 0 {
		rate = float64(result.Processed) / secs
	}
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		result.Processed, result.Elapsed.Round(time.Millisecond), rate)
	r.logger.Info("reembedding complete", "processed", result.Processed, "elapsed", result.Elapsed)
	return result, nil
}
