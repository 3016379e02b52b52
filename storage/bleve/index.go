package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
)

const (
	substringAnalyzer = "substring"
	chunkType         = "chunk"
	batchSize         = 100

	fieldDocument = "document_id"
	fieldTitle    = "title"
	fieldContent  = "content"
)

// indexedChunk is the record stored per chunk.
type indexedChunk struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// Type implements bleve's classifier so every record uses the chunk mapping.
func (indexedChunk) Type() string {
	return chunkType
}

// Index is a bleve-backed keyword index of chunks. It is safe for concurrent use.
type Index struct {
	index  bleve.Index
	logger *slog.Logger
}

// NewMemoryIndex creates an index that lives only in memory.
func NewMemoryIndex() (*Index, error) {
	m, err := newMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("creating memory index: %w", err)
	}
	return wrap(idx), nil
}

// OpenIndex opens the index at path, creating it if it doesn't exist.
func OpenIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening index %s: %w", path, err)
		}
		return wrap(idx), nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	m, err := newMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("creating index %s: %w", path, err)
	}
	return wrap(idx), nil
}

func wrap(idx bleve.Index) *Index {
	return &Index{
		index:  idx,
		logger: slog.Default().With("component", "keyword-index"),
	}
}

func newMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(substringAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("registering analyzer: %w", err)
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = substringAnalyzer
	text.Store = false
	text.IncludeTermVectors = false

	id := bleve.NewKeywordFieldMapping()
	id.Analyzer = keyword.Name

	chunk := bleve.NewDocumentMapping()
	chunk.AddFieldMappingsAt(fieldDocument, id)
	chunk.AddFieldMappingsAt(fieldTitle, text)
	chunk.AddFieldMappingsAt(fieldContent, text)

	m.AddDocumentMapping(chunkType, chunk)
	m.DefaultAnalyzer = substringAnalyzer
	return m, nil
}

// IndexChunks adds or replaces the chunks of doc.
func (i *Index) IndexChunks(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	batch := i.index.NewBatch()
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := indexedChunk{
			DocumentID: formatID(doc.Id),
			Title:      doc.Title,
			Content:    chunk.Content,
		}
		if err := batch.Index(formatID(chunk.Id), record); err != nil {
			return fmt.Errorf("%w: indexing chunk %d: %w", storage.ErrIndexFailed, chunk.Id, err)
		}
		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return err
			}
			batch = i.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		return i.index.Batch(batch)
	}
	return nil
}

// DeleteDocument removes every chunk of a document from the index.
func (i *Index) DeleteDocument(ctx context.Context, documentID core.ID) error {
	q := bleve.NewTermQuery(formatID(documentID))
	q.SetField(fieldDocument)

	ids, err := i.search(ctx, q)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return i.index.Batch(batch)
}

// Match returns the IDs of chunks whose title or content contains any of
// words as a case-insensitive substring.
func (i *Index) Match(ctx context.Context, words []string) (map[core.ID]bool, error) {
	disjuncts := make([]query.Query, 0, 2*len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		// Wildcard syntax has no escapes.
		if w == "" || strings.ContainsAny(w, "*?") {
			continue
		}
		pattern := "*" + w + "*"
		for _, field := range []string{fieldTitle, fieldContent} {
			q := bleve.NewWildcardQuery(pattern)
			q.SetField(field)
			disjuncts = append(disjuncts, q)
		}
	}
	if len(disjuncts) == 0 {
		return map[core.ID]bool{}, nil
	}

	ids, err := i.search(ctx, bleve.NewDisjunctionQuery(disjuncts...))
	if err != nil {
		return nil, err
	}

	matches := make(map[core.ID]bool, len(ids))
	for _, raw := range ids {
		id, err := parseID(raw)
		if err != nil {
			i.logger.Warn("skipping malformed index id", "id", raw, "err", err)
			continue
		}
		matches[id] = true
	}
	return matches, nil
}

// DocCount returns the number of indexed chunks.
func (i *Index) DocCount() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// search returns the IDs of every hit of q.
func (i *Index) search(ctx context.Context, q query.Query) ([]string, error) {
	total, err := i.index.DocCount()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(q, int(total), 0, false)
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", storage.ErrIndexFailed, err)
	}

	ids := make([]string, len(res.Hits))
	for n, hit := range res.Hits {
		ids[n] = hit.ID
	}
	return ids, nil
}

func formatID(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(s string) (core.ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Join(fmt.Errorf("invalid chunk id %q", s), err)
	}
	return core.ID(v), nil
}
