package mock

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/poiesic/secondbrain/ai"
)

// MockKeywordExtractor is a test double for ai.KeywordExtractor.
// It allows custom behavior injection via function fields.
type MockKeywordExtractor struct {
	// ExtractKeywordsFunc is called by ExtractKeywords if set.
	// If nil, uses default longest-word extraction.
	ExtractKeywordsFunc func(ctx context.Context, text string, max int) ([]ai.Keyword, error)

	callCount atomic.Int64
}

// NewMockKeywordExtractor creates a mock keyword extractor with default behavior.
func NewMockKeywordExtractor() *MockKeywordExtractor {
	return &MockKeywordExtractor{}
}

// ExtractKeywords returns the longest distinct words of text.
// Longer words get higher importance; ties keep first-seen order.
func (m *MockKeywordExtractor) ExtractKeywords(ctx context.Context, text string, max int) ([]ai.Keyword, error) {
	m.callCount.Add(1)

	if m.ExtractKeywordsFunc != nil {
		return m.ExtractKeywordsFunc(ctx, text, max)
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	seen := make(map[string]bool, len(words))
	distinct := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 6 || seen[w] {
			continue
		}
		seen[w] = true
		distinct = append(distinct, w)
	}
	slices.SortStableFunc(distinct, func(a, b string) int {
		return len(b) - len(a)
	})

	if max > 0 && len(distinct) > max {
		distinct = distinct[:max]
	}
	keywords := make([]ai.Keyword, len(distinct))
	for i, w := range distinct {
		keywords[i] = ai.Keyword{Name: w, Importance: min(10, len(w))}
	}
	return keywords, nil
}

// CallCount returns the number of times ExtractKeywords was called.
func (m *MockKeywordExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockKeywordExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractKeywordsFunc = nil
}
