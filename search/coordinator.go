package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"github.com/poiesic/secondbrain/temporal"
)

// CandidateSource is the part of the chunk store the searcher reads.
// storage.ChunkRepository satisfies it.
type CandidateSource interface {
	FindCandidates(ctx context.Context, filters *core.Filters) ([]*core.Candidate, error)
	FindSimilar(ctx context.Context, vector []float32, filters *core.Filters, minSimilarity float64, limit int) ([]*storage.SimilarChunk, error)
}

var _ CandidateSource = (storage.ChunkRepository)(nil)

// KeywordIndex narrows lexical candidates to chunks containing any of words
// as a case-insensitive substring of their title or content.
type KeywordIndex interface {
	Match(ctx context.Context, words []string) (map[core.ID]bool, error)
}

// ParseFilters builds filters from user input. Source types are names such as
// "pdf"; start and end accept RFC 3339 or 2006-01-02. Blank values are ignored.
func ParseFilters(sourceTypes []string, start, end string, tags []string) (*core.Filters, error) {
	filters := &core.Filters{}
	for _, name := range sourceTypes {
		if strings.TrimSpace(name) == "" {
			continue
		}
		st, err := core.ParseSourceType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidFilters, err)
		}
		filters.SourceTypes = append(filters.SourceTypes, st)
	}

	rng, err := core.ParseDateRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidFilters, err)
	}
	filters.DateRange = rng

	for _, tag := range tags {
		if name := core.NormalizeTagName(tag); name != "" {
			filters.Tags = append(filters.Tags, name)
		}
	}
	return filters, nil
}

// plan is the filter set both passes run against.
type plan struct {
	text      string // Query text for the lexical pass
	filters   *core.Filters
	dateRange *core.DateRange // Range resolved from the query text, if any
	boost     *core.DateRange // Set in boost mode instead of filtering
}

// coordinator resolves query date ranges and fetches candidates.
type coordinator struct {
	source   CandidateSource
	index    KeywordIndex
	resolver *temporal.Resolver
	mode     TemporalMode
	logger   *slog.Logger
}

// plan applies a date range found in query unless filters already carry one.
// Temporal phrases are removed from the lexical text either way.
func (c *coordinator) plan(query string, filters *core.Filters) plan {
	exprs := c.resolver.Extract(query)
	p := plan{text: stripExpressions(query, exprs), filters: filters}
	if filters != nil && filters.DateRange != nil {
		return p
	}

	rng, ok := c.resolver.Resolve(exprs)
	if !ok {
		return p
	}
	p.dateRange = &rng

	if c.mode == TemporalBoost {
		p.boost = &rng
		return p
	}
	narrowed := core.Filters{}
	if filters != nil {
		narrowed = *filters
	}
	narrowed.DateRange = &rng
	p.filters = &narrowed
	return p
}

// stripExpressions removes the expression spans from query.
// exprs must be ordered and non-overlapping, as Extract returns them.
func stripExpressions(query string, exprs []temporal.Expression) string {
	if len(exprs) == 0 {
		return query
	}
	var b strings.Builder
	last := 0
	for _, expr := range exprs {
		b.WriteString(query[last:expr.Start])
		b.WriteByte(' ')
		last = expr.End
	}
	b.WriteString(query[last:])
	return strings.Join(strings.Fields(b.String()), " ")
}

// lexicalCandidates returns the filtered candidates, narrowed through the
// keyword index when one is configured and can answer for tokens.
func (c *coordinator) lexicalCandidates(ctx context.Context, filters *core.Filters, tokens []string) ([]*core.Candidate, error) {
	candidates, err := c.source.FindCandidates(ctx, filters)
	if err != nil {
		return nil, err
	}
	if c.index == nil || len(tokens) == 0 || !indexable(tokens) {
		return candidates, nil
	}

	hits, err := c.index.Match(ctx, tokens)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("keyword index unavailable, scanning all candidates", "err", err)
		return candidates, nil
	}

	narrowed := make([]*core.Candidate, 0, len(hits))
	for _, cand := range candidates {
		if hits[cand.Chunk.Id] {
			narrowed = append(narrowed, cand)
		}
	}
	c.logger.Debug("narrowed lexical candidates", "candidates", len(candidates), "kept", len(narrowed))
	return narrowed, nil
}

// indexable reports whether the keyword index tokenizes every token as the
// matcher does. That holds for ASCII letters and digits only.
func indexable(tokens []string) bool {
	for _, tok := range tokens {
		for i := 0; i < len(tok); i++ {
			b := tok[i]
			if !(b >= 'a' && b <= 'z' || b >= '0' && b <= '9') {
				return false
			}
		}
	}
	return true
}
