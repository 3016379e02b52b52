package search

import "fmt"

// Mode selects how the lexical matcher retains candidates.
type Mode string

const (
	// ModeStrict keeps exact phrase matches and candidates with coverage >= 0.8.
	ModeStrict Mode = "strict"
	// ModeGraded keeps any candidate whose weighted score exceeds the relevance floor.
	ModeGraded Mode = "graded"
)

// TemporalMode selects how a date range resolved from the query is used.
type TemporalMode string

const (
	// TemporalFilter excludes documents created outside the range.
	TemporalFilter TemporalMode = "filter"
	// TemporalBoost keeps every document and scales scores by temporal relevance.
	TemporalBoost TemporalMode = "boost"
)

// Defaults.
const (
	DefaultK                    = 60
	DefaultRelevanceFloor       = 0.3
	DefaultGradedMinTokenLength = 3
	DefaultStrictMinTokenLength = 4
	DefaultExactPhraseMinLength = 7
	DefaultStrictCoverage       = 0.8
)

// Config holds the tunable parts of ranking.
type Config struct {
	Mode         Mode
	K            int          // RRF constant
	TemporalMode TemporalMode // How query date ranges apply
	// MinSimilarity drops semantic hits below it. Zero disables the cut.
	MinSimilarity float64
	// RelevanceFloor is the graded mode retention threshold.
	RelevanceFloor float64
	// MinTokenLength overrides the mode's minimum query token length when > 0.
	MinTokenLength int
	// ExactPhraseMinLength is the shortest query, in characters, that can
	// short-circuit strict mode as an exact phrase.
	ExactPhraseMinLength int
}

// DefaultConfig returns the default configuration: strict lexical matching,
// k = 60 and date ranges applied as filters.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeStrict,
		K:                    DefaultK,
		TemporalMode:         TemporalFilter,
		RelevanceFloor:       DefaultRelevanceFloor,
		ExactPhraseMinLength: DefaultExactPhraseMinLength,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeStrict, ModeGraded:
	default:
		return fmt.Errorf("%w: unknown lexical mode %q", ErrInvalidConfig, c.Mode)
	}
	switch c.TemporalMode {
	case TemporalFilter, TemporalBoost:
	default:
		return fmt.Errorf("%w: unknown temporal mode %q", ErrInvalidConfig, c.TemporalMode)
	}
	if c.K < 0 {
		return fmt.Errorf("%w: K must not be negative", ErrInvalidConfig)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: MinSimilarity must be in [0,1]", ErrInvalidConfig)
	}
	if c.RelevanceFloor < 0 {
		return fmt.Errorf("%w: RelevanceFloor must not be negative", ErrInvalidConfig)
	}
	if c.MinTokenLength < 0 || c.ExactPhraseMinLength < 0 {
		return fmt.Errorf("%w: lengths must not be negative", ErrInvalidConfig)
	}
	return nil
}

// minTokenLength returns the effective minimum query token length.
func (c Config) minTokenLength() int {
	if c.MinTokenLength > 0 {
		return c.MinTokenLength
	}
	if c.Mode == ModeGraded {
		return DefaultGradedMinTokenLength
	}
	return DefaultStrictMinTokenLength
}
