package search

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
)

// LexicalDiagnostics explains a lexical score.
type LexicalDiagnostics struct {
	MatchedTokens      int
	MeaningfulTokens   int
	Coverage           float64
	ExactPhrase        bool
	Occurrences        int // Total occurrences of matched tokens in title and content
	TitleMatches       int // Meaningful tokens found in the title
	SemanticSimilarity float64
}

// LexicalMatch is a retained candidate and its lexical score.
type LexicalMatch struct {
	Candidate   *core.Candidate
	Score       float64
	Diagnostics LexicalDiagnostics
}

// Matcher scores candidates by how well they cover the meaningful query tokens.
type Matcher struct {
	mode           Mode
	minLen         int
	floor          float64
	phraseMinLen   int
	strictCoverage float64
}

// NewMatcher creates a matcher from the lexical part of config.
func NewMatcher(config Config) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{
		mode:           config.Mode,
		minLen:         config.minTokenLength(),
		floor:          config.RelevanceFloor,
		phraseMinLen:   config.ExactPhraseMinLength,
		strictCoverage: DefaultStrictCoverage,
	}, nil
}

// Mode returns the matcher's retention mode.
func (m *Matcher) Mode() Mode {
	return m.mode
}

// Tokens returns the meaningful tokens of query.
func (m *Matcher) Tokens(query string) []string {
	return meaningfulTokens(query, m.mode, m.minLen)
}

// Score returns the retained candidates ordered by descending score, ties in
// candidate order. queryVector is optional; in strict mode it adds a bonus
// for candidates whose chunk vector is very similar.
// A query without meaningful tokens retains nothing.
func (m *Matcher) Score(query string, candidates []*core.Candidate, queryVector []float32) []LexicalMatch {
	tokens := m.Tokens(query)
	if len(tokens) == 0 {
		return []LexicalMatch{}
	}
	phrase := strings.ToLower(strings.TrimSpace(query))

	matches := make([]LexicalMatch, 0)
	for _, c := range candidates {
		if c == nil || c.Chunk == nil {
			continue
		}
		content := strings.ToLower(c.Chunk.Content)
		var title string
		if c.Document != nil {
			title = strings.ToLower(c.Document.Title)
		}

		diag := measure(tokens, title, content)
		var (
			score float64
			keep  bool
		)
		switch m.mode {
		case ModeGraded:
			score, keep = m.graded(diag)
		default:
			if m.phraseMinLen > 0 && utf8.RuneCountInString(phrase) >= m.phraseMinLen &&
				(strings.Contains(content, phrase) || strings.Contains(title, phrase)) {
				diag.ExactPhrase = true
			}
			if queryVector != nil {
				diag.SemanticSimilarity = ai.Similarity(queryVector, c.Chunk.Vector)
			}
			score, keep = m.strict(diag)
		}
		if keep {
			matches = append(matches, LexicalMatch{Candidate: c, Score: score, Diagnostics: diag})
		}
	}

	slices.SortStableFunc(matches, func(a, b LexicalMatch) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return matches
}

func measure(tokens []string, title, content string) LexicalDiagnostics {
	diag := LexicalDiagnostics{MeaningfulTokens: len(tokens)}
	for _, tok := range tokens {
		inTitle := strings.Count(title, tok)
		inContent := strings.Count(content, tok)
		if inTitle == 0 && inContent == 0 {
			continue
		}
		diag.MatchedTokens++
		diag.Occurrences += inTitle + inContent
		if inTitle > 0 {
			diag.TitleMatches++
		}
	}
	diag.Coverage = float64(diag.MatchedTokens) / float64(diag.MeaningfulTokens)
	return diag
}

func (m *Matcher) graded(d LexicalDiagnostics) (float64, bool) {
	if d.Coverage == 0 {
		return 0, false
	}
	titleWeight := float64(d.TitleMatches) / float64(d.MeaningfulTokens)
	score := 0.7*d.Coverage + 0.3*titleWeight + min(0.1*float64(d.Occurrences), 0.3)
	return score, score > m.floor
}

func (m *Matcher) strict(d LexicalDiagnostics) (float64, bool) {
	if d.ExactPhrase {
		return 1, true
	}
	if d.Coverage < m.strictCoverage {
		return 0, false
	}
	return min(0.7*d.Coverage+similarityBonus(d.SemanticSimilarity), 1), true
}

func similarityBonus(similarity float64) float64 {
	switch {
	case similarity > 0.85:
		return 0.3
	case similarity > 0.75:
		return 0.2
	case similarity > 0.65:
		return 0.1
	}
	return 0
}
