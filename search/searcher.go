package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"github.com/poiesic/secondbrain/temporal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Signal names one of the two ranking signals.
type Signal string

const (
	SignalSemantic Signal = "semantic"
	SignalLexical  Signal = "lexical"
)

// Degradation reports a signal that was unavailable for a search.
type Degradation struct {
	Signal Signal
	Reason string
}

// Timings records how long each stage took.
type Timings struct {
	Embedding time.Duration
	Semantic  time.Duration
	Lexical   time.Duration
	Fusion    time.Duration
	Total     time.Duration
}

// Response is the outcome of a search.
type Response struct {
	Results []*core.SearchResult
	// Degraded is set when one signal failed and the results come from the other.
	Degraded *Degradation
	// DateRange is the range resolved from the query text, nil if none.
	DateRange *core.DateRange
	// Tokens are the meaningful query tokens used by the lexical pass.
	Tokens  []string
	Timings Timings
}

// Searcher provides hybrid semantic and lexical search over stored chunks.
type Searcher struct {
	source    CandidateSource
	generator *ai.Generator
	index     KeywordIndex
	resolver  *temporal.Resolver
	matcher   *Matcher
	coord     *coordinator
	config    Config
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithConfig replaces the default ranking configuration.
func WithConfig(config Config) Option {
	return func(s *Searcher) error {
		if err := config.Validate(); err != nil {
			return err
		}
		s.config = config
		return nil
	}
}

// WithKeywordIndex narrows lexical candidates through index.
func WithKeywordIndex(index KeywordIndex) Option {
	return func(s *Searcher) error {
		s.index = index
		return nil
	}
}

// WithResolver sets the temporal resolver, typically to fix its clock.
func WithResolver(resolver *temporal.Resolver) Option {
	return func(s *Searcher) error {
		if resolver != nil {
			s.resolver = resolver
		}
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(source CandidateSource, generator *ai.Generator, opts ...Option) (*Searcher, error) {
	if source == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	s := &Searcher{
		source:    source,
		generator: generator,
		config:    DefaultConfig(),
		tracer:    otel.Tracer("github.com/poiesic/secondbrain/search"),
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	if s.resolver == nil {
		resolver, err := temporal.NewResolver()
		if err != nil {
			return nil, err
		}
		s.resolver = resolver
	}

	matcher, err := NewMatcher(s.config)
	if err != nil {
		return nil, err
	}
	s.matcher = matcher
	s.coord = &coordinator{
		source:   source,
		index:    s.index,
		resolver: s.resolver,
		mode:     s.config.TemporalMode,
		logger:   s.logger,
	}
	return s, nil
}

// Config returns the searcher's ranking configuration.
func (s *Searcher) Config() Config {
	return s.config
}

// Search returns up to limit chunks relevant to query, best first.
func (s *Searcher) Search(ctx context.Context, query string, filters *core.Filters, limit int) (*Response, error) {
	return s.SearchWithMonitor(ctx, query, filters, limit, nil)
}

// SearchWithMonitor searches like Search. The monitor receives callbacks at
// each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, filters *core.Filters, limit int, monitor SearchMonitor) (resp *Response, err error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if err := core.ValidateFilters(filters); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "search",
		trace.WithAttributes(
			attribute.Int("search.limit", limit),
			attribute.String("search.mode", string(s.config.Mode)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	monitor.Start(query, filters, limit)
	resp = &Response{Results: []*core.SearchResult{}}

	query = strings.TrimSpace(query)
	if query == "" {
		monitor.Finish(resp)
		return resp, nil
	}

	p := s.coord.plan(query, filters)
	resp.DateRange = p.dateRange
	resp.Tokens = s.matcher.Tokens(p.text)
	monitor.AfterTemporalResolution(p.dateRange, s.config.TemporalMode)

	embedStart := time.Now()
	queryVector, embedErr := s.generator.Embed(ctx, query)
	resp.Timings.Embedding = time.Since(embedStart)
	if embedErr != nil {
		// The zero vector would rank every chunk equally.
		queryVector = nil
	}

	depth := 2 * limit
	var (
		semantic []*storage.SimilarChunk
		lexical  []LexicalMatch
		semErr   = embedErr
		lexErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	if semErr == nil {
		g.Go(func() error {
			began := time.Now()
			semantic, semErr = s.semanticPass(gctx, queryVector, p.filters, depth)
			resp.Timings.Semantic = time.Since(began)
			if semErr == nil {
				monitor.AfterSemanticSearch(semantic)
			}
			return nil // Don't fail the group
		})
	}
	g.Go(func() error {
		began := time.Now()
		lexical, lexErr = s.lexicalPass(gctx, p.text, resp.Tokens, queryVector, p.filters, depth)
		resp.Timings.Lexical = time.Since(began)
		if lexErr == nil {
			monitor.AfterLexicalSearch(resp.Tokens, lexical)
		}
		return nil
	})
	if waitErr := g.Wait(); waitErr != nil {
		return nil, waitErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	switch {
	case semErr != nil && lexErr != nil:
		return nil, errors.Join(ErrAllSignalsFailed, semErr, lexErr)
	case semErr != nil:
		resp.Degraded = s.degrade(SignalSemantic, semErr, monitor)
	case lexErr != nil:
		resp.Degraded = s.degrade(SignalLexical, lexErr, monitor)
	}

	fuseStart := time.Now()
	resp.Results = s.fuse(ctx, semantic, lexical, queryVector, lexErr == nil, p.boost, limit, monitor)
	resp.Timings.Fusion = time.Since(fuseStart)
	resp.Timings.Total = time.Since(started)

	span.SetAttributes(
		attribute.Int("search.results", len(resp.Results)),
		attribute.Bool("search.degraded", resp.Degraded != nil),
	)
	s.logger.Debug("search complete",
		"semantic", len(semantic), "lexical", len(lexical),
		"results", len(resp.Results), "elapsed", resp.Timings.Total)
	monitor.Finish(resp)
	return resp, nil
}

func (s *Searcher) semanticPass(ctx context.Context, vector []float32, filters *core.Filters, depth int) ([]*storage.SimilarChunk, error) {
	ctx, span := s.tracer.Start(ctx, "search.semantic")
	defer span.End()

	hits, err := s.source.FindSimilar(ctx, vector, filters, s.config.MinSimilarity, depth)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	return hits, nil
}

func (s *Searcher) lexicalPass(ctx context.Context, query string, tokens []string, vector []float32, filters *core.Filters, depth int) ([]LexicalMatch, error) {
	ctx, span := s.tracer.Start(ctx, "search.lexical")
	defer span.End()

	if len(tokens) == 0 {
		// Vague queries retrieve nothing lexically.
		return []LexicalMatch{}, nil
	}

	candidates, err := s.coord.lexicalCandidates(ctx, filters, tokens)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	matches := s.matcher.Score(query, candidates, vector)
	if len(matches) > depth {
		matches = matches[:depth]
	}
	span.SetAttributes(attribute.Int("search.hits", len(matches)))
	return matches, nil
}

func (s *Searcher) degrade(signal Signal, cause error, monitor SearchMonitor) *Degradation {
	s.logger.Warn("search signal unavailable, continuing with the other", "signal", signal, "err", cause)
	monitor.SignalFailed(signal, cause)
	return &Degradation{Signal: signal, Reason: cause.Error()}
}

// fuse merges both ranked lists into at most limit results.
// In strict mode, with the lexical signal available, only chunks the lexical
// matcher retained survive.
func (s *Searcher) fuse(
	ctx context.Context,
	semantic []*storage.SimilarChunk,
	lexical []LexicalMatch,
	queryVector []float32,
	lexicalOK bool,
	boost *core.DateRange,
	limit int,
	monitor SearchMonitor,
) []*core.SearchResult {
	_, span := s.tracer.Start(ctx, "search.fuse")
	defer span.End()

	candidates := make(map[core.ID]*core.Candidate, len(semantic)+len(lexical))
	similarity := make(map[core.ID]float64, len(semantic))
	semIDs := make([]core.ID, len(semantic))
	for i, hit := range semantic {
		id := hit.Chunk.Id
		semIDs[i] = id
		similarity[id] = hit.Similarity
		candidates[id] = &hit.Candidate
	}
	lexByID := make(map[core.ID]*LexicalMatch, len(lexical))
	lexIDs := make([]core.ID, len(lexical))
	for i := range lexical {
		m := &lexical[i]
		id := m.Candidate.Chunk.Id
		lexIDs[i] = id
		lexByID[id] = m
		if _, ok := candidates[id]; !ok {
			candidates[id] = m.Candidate
		}
	}

	fused := ReciprocalRankFusion(s.config.K, semIDs, lexIDs)
	if s.config.Mode == ModeStrict && lexicalOK {
		fused = slices.DeleteFunc(fused, func(f Fused) bool { return f.Ranks[1] < 0 })
	}
	monitor.AfterFusion(fused)

	var now time.Time
	if boost != nil {
		now = s.resolver.Now()
	}

	results := make([]*core.SearchResult, 0, len(fused))
	for _, f := range fused {
		cand := candidates[f.ID]
		result := &core.SearchResult{
			ChunkId:     cand.Chunk.Id,
			DocumentId:  cand.Chunk.DocumentId,
			Content:     cand.Chunk.Content,
			FusionScore: f.Score,
			Score:       normalizeFusion(f.Score, s.config.K),
			SearchType:  searchType(f),
			Diagnostics: core.Diagnostics{
				SemanticRank:   f.Ranks[0],
				LexicalRank:    f.Ranks[1],
				TemporalFactor: 1,
			},
		}
		if cand.Document != nil {
			result.Title = cand.Document.Title
			result.SourceType = cand.Document.SourceType
			result.CreatedAt = cand.Document.CreatedAt
		}

		if sim, ok := similarity[f.ID]; ok {
			result.Diagnostics.SemanticSimilarity = sim
		} else if queryVector != nil {
			result.Diagnostics.SemanticSimilarity = ai.Similarity(queryVector, cand.Chunk.Vector)
		}
		if m, ok := lexByID[f.ID]; ok {
			result.Diagnostics.LexicalScore = m.Score
			result.Diagnostics.MatchedTokens = m.Diagnostics.MatchedTokens
			result.Diagnostics.MeaningfulTokens = m.Diagnostics.MeaningfulTokens
			result.Diagnostics.Coverage = m.Diagnostics.Coverage
			result.Diagnostics.ExactPhrase = m.Diagnostics.ExactPhrase
		}

		if boost != nil {
			factor := temporal.Relevance(result.CreatedAt, boost, now)
			result.Diagnostics.TemporalFactor = factor
			result.Score *= factor
		}
		results = append(results, result)
	}

	if boost != nil {
		slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			}
			return 0
		})
	}
	if len(results) > limit {
		results = results[:limit]
	}
	span.SetAttributes(attribute.Int("search.fused", len(fused)))
	return results
}

func searchType(f Fused) core.SearchType {
	switch {
	case f.Ranks[0] >= 0 && f.Ranks[1] >= 0:
		return core.SearchTypeHybrid
	case f.Ranks[0] >= 0:
		return core.SearchTypeSemantic
	}
	return core.SearchTypeKeyword
}
