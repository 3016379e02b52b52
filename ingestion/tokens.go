package ingestion

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tokenizer used for sizing passages.
const DefaultEncoding = "cl100k_base"

// wordTokenRatio approximates tokens per whitespace-separated word.
const wordTokenRatio = 1.3

// TokenCounter measures text in tokens. Counts are used for sizing only and
// need not match any model exactly.
type TokenCounter interface {
	CountTokens(text string) int
}

// ApproximateCounter estimates tokens as words * 1.3.
type ApproximateCounter struct{}

// CountTokens implements TokenCounter.
func (ApproximateCounter) CountTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * wordTokenRatio)
}

// TiktokenCounter counts tokens with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding. Loading may fetch the
// encoding's ranks on first use.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountTokens implements TokenCounter.
func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// NewTokenCounter returns a tiktoken counter for DefaultEncoding, or the
// approximate counter when the encoding cannot be loaded.
func NewTokenCounter(logger *slog.Logger) TokenCounter {
	if logger == nil {
		logger = slog.Default()
	}
	counter, err := NewTiktokenCounter(DefaultEncoding)
	if err != nil {
		logger.Warn("tokenizer unavailable, approximating token counts", "err", err)
		return ApproximateCounter{}
	}
	return counter
}
