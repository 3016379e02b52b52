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

// Package secondbrain wires the document store, keyword index, conversation
// history, AI backends, ingestion pipeline, searcher and assistant into one
// knowledge base.
package secondbrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/ai/openai"
	"github.com/poiesic/secondbrain/assistant"
	"github.com/poiesic/secondbrain/config"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/ingestion"
	"github.com/poiesic/secondbrain/reembed"
	"github.com/poiesic/secondbrain/search"
	"github.com/poiesic/secondbrain/storage"
	"github.com/poiesic/secondbrain/storage/badger"
	"github.com/poiesic/secondbrain/storage/bleve"
	"github.com/poiesic/secondbrain/storage/sqlite"
)

const (
	// PopularTagLimit is the number of tags reported by Stats.
	PopularTagLimit = 10

	indexBatchSize = 200
)

// KnowledgeBase is an opened data directory.
type KnowledgeBase struct {
	config    *config.Config
	repos     *badger.Repositories
	index     *bleve.Index
	history   *sqlite.HistoryStore
	provider  ai.AIProvider
	generator *ai.Generator
	pipeline  *ingestion.Pipeline
	searcher  *search.Searcher
	assistant *assistant.Assistant
	base      *slog.Logger // Handed to components, which add their own name
	logger    *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider   ai.AIProvider
	logger     *slog.Logger
	searchOpts []search.Option
}

// WithProvider replaces the OpenAI-compatible provider built from the config.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSearchOptions passes extra options to the searcher.
func WithSearchOptions(opts ...search.Option) Option {
	return func(o *options) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// Open opens or creates the knowledge base in cfg.DataDir.
// The keyword index is rebuilt from the store when it is missing or out of step.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *KnowledgeBase, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	kb := &KnowledgeBase{
		config: cfg,
		base:   o.logger,
		logger: o.logger.With("component", "knowledge-base"),
	}
	defer func() {
		if err != nil {
			kb.Close()
		}
	}()

	if kb.repos, err = badger.Open(cfg.StorePath()); err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if kb.index, err = bleve.OpenIndex(cfg.IndexPath()); err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}
	if kb.history, err = sqlite.OpenHistoryStore(cfg.HistoryPath()); err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	kb.provider = o.provider
	if kb.provider == nil {
		if kb.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return nil, fmt.Errorf("creating AI provider: %w", err)
		}
	}
	if kb.generator, err = ai.NewGenerator(kb.provider.Embedder(), cfg.AIConfig(), ai.WithLogger(o.logger)); err != nil {
		return nil, err
	}

	if err = kb.syncIndex(ctx); err != nil {
		return nil, err
	}

	chunkerOpts := []ingestion.ChunkerOption{ingestion.WithChunkerConfig(cfg.ChunkerConfig())}
	if cfg.Chunking.Tokenizer == config.TokenizerTiktoken {
		chunkerOpts = append(chunkerOpts, ingestion.WithTokenCounter(ingestion.NewTokenCounter(o.logger)))
	}
	chunker, err := ingestion.NewChunker(chunkerOpts...)
	if err != nil {
		return nil, err
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(o.logger),
		ingestion.WithChunker(chunker),
		ingestion.WithKeywordIndex(kb.index),
		ingestion.WithProcessingTimeout(cfg.Ingestion.Timeout.Duration),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	if cfg.Ingestion.AutoTags > 0 && kb.provider.KeywordExtractor() != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithAutoTagging(kb.provider.KeywordExtractor(), cfg.Ingestion.AutoTags))
	}
	kb.pipeline, err = ingestion.NewPipeline(kb.repos.Documents, kb.repos.Chunks, kb.repos.Tags, kb.generator, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	searchOpts := []search.Option{
		search.WithLogger(o.logger),
		search.WithConfig(cfg.SearchConfig()),
	}
	if cfg.Search.KeywordIndex {
		searchOpts = append(searchOpts, search.WithKeywordIndex(kb.index))
	}
	kb.searcher, err = search.NewSearcher(kb.repos.Chunks, kb.generator, append(searchOpts, o.searchOpts...)...)
	if err != nil {
		return nil, err
	}

	kb.assistant, err = assistant.New(kb.searcher, kb.provider.Responder(),
		assistant.WithHistory(kb.history),
		assistant.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return kb, nil
}

// syncIndex rebuilds the keyword index when its entry count differs from the
// number of stored chunks.
func (kb *KnowledgeBase) syncIndex(ctx context.Context) error {
	indexed, err := kb.index.DocCount()
	if err != nil {
		return err
	}
	stored, err := kb.repos.Chunks.CountChunks(ctx)
	if err != nil {
		return err
	}
	if indexed == uint64(stored) {
		return nil
	}

	kb.logger.Info("rebuilding keyword index", "indexed", indexed, "chunks", stored)
	if err := kb.index.Close(); err != nil {
		return err
	}
	kb.index = nil
	if err := os.RemoveAll(kb.config.IndexPath()); err != nil {
		return fmt.Errorf("removing keyword index: %w", err)
	}
	if kb.index, err = bleve.OpenIndex(kb.config.IndexPath()); err != nil {
		return fmt.Errorf("recreating keyword index: %w", err)
	}

	docs := make(map[core.ID]*core.Document)
	return kb.repos.Chunks.ForEachChunk(ctx, 0, indexBatchSize, func(batch []*core.Chunk) error {
		byDoc := make(map[core.ID][]*core.Chunk)
		var order []core.ID
		for _, chunk := range batch {
			if _, ok := byDoc[chunk.DocumentId]; !ok {
				order = append(order, chunk.DocumentId)
			}
			byDoc[chunk.DocumentId] = append(byDoc[chunk.DocumentId], chunk)
		}
		for _, id := range order {
			doc, ok := docs[id]
			if !ok {
				var err error
				if doc, err = kb.repos.Documents.GetDocument(ctx, id); err != nil {
					return err
				}
				docs[id] = doc
			}
			if err := kb.index.IndexChunks(ctx, doc, byDoc[id]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close waits for pending ingestion and releases every component.
func (kb *KnowledgeBase) Close() error {
	if kb.pipeline != nil {
		kb.pipeline.Release()
	}
	if kb.generator != nil {
		kb.generator.Close()
	}

	var errs []error
	if kb.provider != nil {
		if err := kb.provider.Close(); err != nil {
			kb.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.index != nil {
		if err := kb.index.Close(); err != nil {
			kb.logger.Error("error closing keyword index", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.history != nil {
		if err := kb.history.Close(); err != nil {
			kb.logger.Error("error closing history", "err", err)
			errs = append(errs, err)
		}
	}
	if kb.repos != nil {
		if err := kb.repos.Close(); err != nil {
			kb.logger.Error("error closing store", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the knowledge base was opened with.
func (kb *KnowledgeBase) Config() *config.Config {
	return kb.config
}

// Ingest stores a document and processes it in the background.
func (kb *KnowledgeBase) Ingest(ctx context.Context, req *ingestion.Request) (*core.Document, error) {
	return kb.pipeline.Ingest(ctx, req)
}

// IngestSync stores and processes a document before returning.
func (kb *KnowledgeBase) IngestSync(ctx context.Context, req *ingestion.Request) (*core.Document, error) {
	return kb.pipeline.IngestSync(ctx, req)
}

// Wait blocks until background ingestion finishes.
func (kb *KnowledgeBase) Wait() {
	kb.pipeline.Wait()
}

// Search ranks stored passages against query.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, filters *core.Filters, limit int) (*search.Response, error) {
	return kb.searcher.Search(ctx, query, filters, limit)
}

// SearchWithMonitor is Search with hooks into each stage.
func (kb *KnowledgeBase) SearchWithMonitor(ctx context.Context, query string, filters *core.Filters, limit int, monitor search.SearchMonitor) (*search.Response, error) {
	return kb.searcher.SearchWithMonitor(ctx, query, filters, limit, monitor)
}

// Ask answers a question from the knowledge base.
func (kb *KnowledgeBase) Ask(ctx context.Context, req *assistant.Request) (*assistant.Answer, error) {
	return kb.assistant.Ask(ctx, req)
}

// AskStream answers a question, passing the response to fn as it is generated.
func (kb *KnowledgeBase) AskStream(ctx context.Context, req *assistant.Request, fn func(chunk string) error) (*assistant.Answer, error) {
	return kb.assistant.AskStream(ctx, req, fn)
}

// Document returns a document and its chunks.
func (kb *KnowledgeBase) Document(ctx context.Context, id core.ID) (*core.Document, []*core.Chunk, error) {
	doc, err := kb.repos.Documents.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := kb.repos.Chunks.GetChunksByDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, chunks, nil
}

// Documents lists documents newest first.
func (kb *KnowledgeBase) Documents(ctx context.Context, offset, limit int) ([]*core.Document, error) {
	return kb.repos.Documents.ListDocuments(ctx, offset, limit)
}

// DeleteDocument removes a document, its chunks and its keyword index entries.
func (kb *KnowledgeBase) DeleteDocument(ctx context.Context, id core.ID) error {
	if err := kb.repos.Documents.DeleteDocuments(ctx, id); err != nil {
		return err
	}
	if err := kb.index.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("removing document %d from keyword index: %w", id, err)
	}
	return nil
}

// Tags lists every tag by name.
func (kb *KnowledgeBase) Tags(ctx context.Context) ([]*core.Tag, error) {
	return kb.repos.Tags.ListTags(ctx)
}

// History lists recorded exchanges newest first.
func (kb *KnowledgeBase) History(ctx context.Context, offset, limit int) ([]*core.Exchange, error) {
	return kb.history.ListExchanges(ctx, offset, limit)
}

// Trends returns per-day query counts since the given time.
func (kb *KnowledgeBase) Trends(ctx context.Context, since time.Time) ([]storage.DailyCount, error) {
	return kb.history.QueryTrends(ctx, since)
}

// Stats summarizes the knowledge base.
type Stats struct {
	Documents       int
	TotalBytes      int64
	Chunks          int
	IndexedChunks   uint64
	Queries         int
	AvgResponseTime time.Duration
	PopularTags     []*storage.TagCount
	DiskSize        int64
}

// Stats collects counts from the store, the keyword index and the history.
func (kb *KnowledgeBase) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{DiskSize: kb.repos.Backend.DiskSize()}

	var err error
	if stats.Documents, stats.TotalBytes, err = kb.repos.Documents.CountDocuments(ctx); err != nil {
		return nil, err
	}
	if stats.Chunks, err = kb.repos.Chunks.CountChunks(ctx); err != nil {
		return nil, err
	}
	if stats.IndexedChunks, err = kb.index.DocCount(); err != nil {
		return nil, err
	}
	queries, err := kb.history.QueryStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Queries = queries.Count
	stats.AvgResponseTime = queries.AvgResponseTime
	if stats.PopularTags, err = kb.repos.Tags.PopularTags(ctx, PopularTagLimit); err != nil {
		return nil, err
	}
	return stats, nil
}

// Reembed recomputes every chunk vector with the current embedding model.
// An interrupted run resumes where it stopped. Progress goes to progress,
// which may be nil.
func (kb *KnowledgeBase) Reembed(ctx context.Context, cfg *reembed.Config, progress io.Writer) (*reembed.Result, error) {
	opts := []reembed.Option{
		reembed.WithCheckpoints(kb.repos.Checkpoints),
		reembed.WithLogger(kb.base),
	}
	if progress != nil {
		opts = append(opts, reembed.WithProgress(progress))
	}
	r, err := reembed.NewReembedder(kb.repos.Chunks, kb.generator, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}
