package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KeywordIndex receives stored chunks for full-text lookup.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error
	DeleteDocument(ctx context.Context, documentID core.ID) error
}

// Pipeline orchestrates the ingestion and processing of documents.
// Each document is processed by a single worker, so writes for one document
// are serialized.
type Pipeline struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	tags      storage.TagRepository
	chunker   *Chunker
	index     KeywordIndex
	pool      *ants.Pool
	embedProc processor
	tagProc   processor
	extractor ai.KeywordExtractor
	maxTags   int
	timeout   time.Duration
	pending   sync.WaitGroup
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *Chunker) Option {
	return func(p *Pipeline) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithKeywordIndex adds stored chunks to index.
func WithKeywordIndex(index KeywordIndex) Option {
	return func(p *Pipeline) error {
		p.index = index
		return nil
	}
}

// WithAutoTagging tags each document with up to maxTags keywords from extractor.
func WithAutoTagging(extractor ai.KeywordExtractor, maxTags int) Option {
	return func(p *Pipeline) error {
		p.extractor = extractor
		p.maxTags = maxTags
		return nil
	}
}

// WithProcessingTimeout bounds the background processing of one document.
// Zero means no bound.
func WithProcessingTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout < 0 {
			return fmt.Errorf("processing timeout cannot be negative")
		}
		p.timeout = timeout
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	tags storage.TagRepository,
	generator *ai.Generator,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if tags == nil {
		return nil, ErrTagRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	chunker, err := NewChunker()
	if err != nil {
		pool.Release()
		return nil, err
	}

	p := &Pipeline{
		documents: documents,
		chunks:    chunks,
		tags:      tags,
		chunker:   chunker,
		pool:      pool,
		tracer:    otel.Tracer("github.com/poiesic/secondbrain/ingestion"),
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processors after options are applied (so they get final config)
	p.embedProc, err = newEmbeddingProcessor(generator, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	if p.extractor != nil {
		p.tagProc, err = newTaggingProcessor(tags, p.extractor, p.maxTags, p.logger)
		if err != nil {
			p.Release()
			return nil, err
		}
	}

	return p, nil
}

// Request describes a document to ingest.
type Request struct {
	SourceType core.SourceType
	SourcePath string
	Title      string
	Author     string
	Content    string            // Extracted text
	CreatedAt  time.Time         // Optional, defaults to now
	Tags       []string          // Tag names, created if missing
	Metadata   map[string]string // Copied to the document and its chunks
}

// Ingest stores the document as pending and processes it asynchronously.
// Processing errors are logged and recorded on the document, not returned.
func (p *Pipeline) Ingest(ctx context.Context, req *Request) (*core.Document, error) {
	doc, err := p.store(ctx, req)
	if err != nil {
		return nil, err
	}

	p.pending.Add(1)
	err = p.pool.Submit(func() {
		defer p.pending.Done()

		bg := context.Background()
		if p.timeout > 0 {
			var cancel context.CancelFunc
			bg, cancel = context.WithTimeout(bg, p.timeout)
			defer cancel()
		}
		if err := p.process(bg, doc); err != nil {
			p.logger.Error("error processing document", "document", doc.Id, "err", err)
		}
	})
	if err != nil {
		p.pending.Done()
		return nil, fmt.Errorf("submitting document %d: %w", doc.Id, err)
	}
	return doc, nil
}

// IngestSync stores and processes the document before returning it.
// A processing failure returns the failed document and an error wrapping
// ErrProcessingFailed.
func (p *Pipeline) IngestSync(ctx context.Context, req *Request) (*core.Document, error) {
	doc, err := p.store(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.process(ctx, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Wait blocks until all asynchronously submitted documents are processed.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Release waits for in-flight work and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.pending.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}

// store validates the request, resolves its tags and adds a pending document.
func (p *Pipeline) store(ctx context.Context, req *Request) (*core.Document, error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidDocument, core.ErrEmptyContent)
	}
	if err := core.ValidateSourceType(req.SourceType); err != nil {
		return nil, err
	}

	doc := &core.Document{
		SourceType: req.SourceType,
		SourcePath: req.SourcePath,
		Title:      req.Title,
		Author:     req.Author,
		Content:    req.Content,
		CreatedAt:  req.CreatedAt,
		Status:     core.StatusPending,
		Size:       int64(len(req.Content)),
		Metadata:   maps.Clone(req.Metadata),
	}

	for _, name := range req.Tags {
		tag, err := p.tags.GetOrCreateTag(ctx, name, "", false)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", name, err)
		}
		if !doc.HasTag(tag.Id) {
			doc.Tags = append(doc.Tags, tag.Id)
		}
	}

	added, err := p.documents.AddDocuments(ctx, doc)
	if err != nil {
		return nil, err
	}
	p.logger.Info("stored document", "document", added[0].Id, "source", doc.SourceType, "bytes", doc.Size)
	return added[0], nil
}

// process moves a pending document to completed, or to failed with the error
// recorded in its metadata.
func (p *Pipeline) process(ctx context.Context, doc *core.Document) (err error) {
	ctx, span := p.tracer.Start(ctx, "ingestion.process",
		trace.WithAttributes(
			attribute.Int64("document.id", int64(doc.Id)),
			attribute.String("document.source_type", doc.SourceType.String()),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	doc.Status = core.StatusProcessing
	if _, err := p.documents.UpdateDocuments(ctx, doc); err != nil {
		return err
	}

	chunkCount, procErr := p.run(ctx, doc)
	if procErr != nil {
		p.fail(doc, procErr)
		return fmt.Errorf("%w: document %d: %w", ErrProcessingFailed, doc.Id, procErr)
	}

	doc.Status = core.StatusCompleted
	if _, err := p.documents.UpdateDocuments(ctx, doc); err != nil {
		p.fail(doc, err)
		return fmt.Errorf("%w: document %d: %w", ErrProcessingFailed, doc.Id, err)
	}

	span.SetAttributes(attribute.Int("document.chunks", chunkCount))
	p.logger.Info("processed document", "document", doc.Id, "chunks", chunkCount, "elapsed", time.Since(start))
	return nil
}

// run chunks, enriches and stores the document's chunks.
func (p *Pipeline) run(ctx context.Context, doc *core.Document) (int, error) {
	passages := p.chunker.Chunk(doc.Content, doc.SourceType, doc.Metadata)
	if len(passages) == 0 {
		// Content too short for any passage is kept whole.
		passages = []Passage{p.wholePassage(doc)}
	}

	j := &job{doc: doc, chunks: make([]*core.Chunk, len(passages))}
	for i, passage := range passages {
		j.chunks[i] = &core.Chunk{
			DocumentId: doc.Id,
			Content:    passage.Content,
			Index:      passage.Index,
			TokenCount: passage.TokenCount,
			Metadata:   passage.Metadata,
		}
	}

	if err := p.runProcessor(ctx, p.embedProc, j); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stored, err := p.chunks.AddChunks(ctx, j.chunks...)
	if err != nil {
		return 0, err
	}
	j.chunks = stored

	if p.index != nil {
		if err := p.index.IndexChunks(ctx, doc, stored); err != nil {
			return 0, fmt.Errorf("indexing keywords: %w", err)
		}
	}

	if p.tagProc != nil {
		if err := p.runProcessor(ctx, p.tagProc, j); err != nil {
			return 0, err
		}
	}
	return len(stored), nil
}

func (p *Pipeline) runProcessor(ctx context.Context, proc processor, j *job) error {
	ctx, span := p.tracer.Start(ctx, "ingestion."+proc.name())
	defer span.End()

	if err := proc.process(ctx, j); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", proc.name(), err)
	}
	return nil
}

func (p *Pipeline) wholePassage(doc *core.Document) Passage {
	content := strings.TrimSpace(doc.Content)
	meta := maps.Clone(doc.Metadata)
	if meta == nil {
		meta = make(map[string]string, 2)
	}
	meta[core.MetadataChunkIndex] = "0"
	meta[core.MetadataChunkLength] = fmt.Sprint(len([]rune(content)))
	return Passage{
		Content:    content,
		TokenCount: p.chunker.counter.CountTokens(content),
		Metadata:   meta,
	}
}

// fail marks doc failed and drops whatever chunks and index entries the run
// already wrote. It uses a fresh context so that a cancelled or timed-out
// processing run is still recorded.
func (p *Pipeline) fail(doc *core.Document, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.chunks.DeleteChunksByDocument(ctx, doc.Id); err != nil {
		p.logger.Warn("could not remove chunks of failed document", "document", doc.Id, "err", err)
	}
	if p.index != nil {
		if err := p.index.DeleteDocument(ctx, doc.Id); err != nil {
			p.logger.Warn("could not remove index entries of failed document", "document", doc.Id, "err", err)
		}
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string, 1)
	}
	doc.Metadata[core.MetadataError] = cause.Error()
	doc.Status = core.StatusFailed
	if _, err := p.documents.UpdateDocuments(ctx, doc); err != nil {
		p.logger.Error("could not mark document failed", "document", doc.Id, "err", errors.Join(cause, err))
	}
}
