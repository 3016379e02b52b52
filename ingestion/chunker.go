package ingestion

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/secondbrain/core"
)

// Default chunk sizing, in tokens.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
	DefaultMinChunkSize = 50
)

var (
	// "Speaker N:" labels and [hh:mm:ss] timecodes anywhere; named labels
	// ("Alice:", "Guest 2:") only at the start of a line.
	transcriptMarker = regexp.MustCompile(`Speaker \d+:|(?m:^[ \t]*[A-Z][a-z]+(?: \d+)?:)|\[\d{2}:\d{2}:\d{2}\]`)

	// Markdown headers, numbered sections, ALL CAPS lines and "Section title:" lines.
	sectionHeaders = []*regexp.Regexp{
		regexp.MustCompile(`^#{1,6}\s+.+$`),
		regexp.MustCompile(`^\d+\.\s+.+$`),
		regexp.MustCompile(`^[A-Z][A-Z\s]+$`),
		regexp.MustCompile(`^[A-Z][^.!?]*:$`),
	}

	sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)
	paragraphs  = regexp.MustCompile(`\n\s*\n`)
)

// ChunkerConfig sizes passages in tokens.
type ChunkerConfig struct {
	ChunkSize    int // Upper bound of a passage
	ChunkOverlap int // Upper bound of the context carried into the next passage
	MinChunkSize int // Trailing passages below this are dropped
}

// DefaultChunkerConfig returns the default sizing.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		MinChunkSize: DefaultMinChunkSize,
	}
}

// Validate checks that the sizes are usable.
func (c ChunkerConfig) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: ChunkSize must be positive", ErrInvalidChunkerConfig)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: ChunkOverlap must be in [0, ChunkSize)", ErrInvalidChunkerConfig)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize {
		return fmt.Errorf("%w: MinChunkSize must be in [0, ChunkSize]", ErrInvalidChunkerConfig)
	}
	return nil
}

// Passage is a chunk of text ready to be embedded and stored.
type Passage struct {
	Content    string
	Index      int
	TokenCount int
	Metadata   map[string]string
}

// Chunker splits extracted text into retrieval-sized passages, choosing a
// strategy by source type. It is safe for concurrent use.
type Chunker struct {
	config  ChunkerConfig
	counter TokenCounter
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker) error

// WithChunkerConfig sets the passage sizing.
func WithChunkerConfig(config ChunkerConfig) ChunkerOption {
	return func(c *Chunker) error {
		if err := config.Validate(); err != nil {
			return err
		}
		c.config = config
		return nil
	}
}

// WithTokenCounter sets how text is measured.
// Default is ApproximateCounter.
func WithTokenCounter(counter TokenCounter) ChunkerOption {
	return func(c *Chunker) error {
		if counter != nil {
			c.counter = counter
		}
		return nil
	}
}

// NewChunker creates a chunker.
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	c := &Chunker{
		config:  DefaultChunkerConfig(),
		counter: ApproximateCounter{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Config returns the chunker's sizing.
func (c *Chunker) Config() ChunkerConfig {
	return c.config
}

// Chunk splits content into ordered passages. Blank content yields none.
// Each passage carries a copy of metadata plus its index and length.
func (c *Chunker) Chunk(content string, sourceType core.SourceType, metadata map[string]string) []Passage {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var texts []string
	switch sourceType {
	case core.SourceTypeAudio:
		texts = c.splitTranscript(content)
	case core.SourceTypeText, core.SourceTypePDF:
		texts = c.splitDocument(content)
	case core.SourceTypeWeb:
		texts = c.splitWeb(content)
	default:
		texts = c.splitSentences(content)
	}

	passages := make([]Passage, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		index := len(passages)
		meta := make(map[string]string, len(metadata)+2)
		maps.Copy(meta, metadata)
		meta[core.MetadataChunkIndex] = strconv.Itoa(index)
		meta[core.MetadataChunkLength] = strconv.Itoa(utf8.RuneCountInString(text))

		passages = append(passages, Passage{
			Content:    text,
			Index:      index,
			TokenCount: c.counter.CountTokens(text),
			Metadata:   meta,
		})
	}
	return passages
}

// splitTranscript cuts at speaker and timecode markers. Without markers it
// falls back to sentences.
func (c *Chunker) splitTranscript(content string) []string {
	locs := transcriptMarker.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return c.splitSentences(content)
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			out = append(out, current.String())
		}
		current.Reset()
	}

	addText := func(text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		current.WriteString(text)
		if c.counter.CountTokens(current.String()) >= c.config.ChunkSize {
			flush()
		}
	}

	addText(content[:locs[0][0]])
	for i, loc := range locs {
		// A new marker closes the current passage once it is big enough.
		if current.Len() > 0 && c.counter.CountTokens(current.String()) >= c.config.MinChunkSize {
			flush()
		}
		current.WriteString(content[loc[0]:loc[1]])

		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		addText(content[loc[1]:end])
	}
	flush()
	return out
}

// splitDocument cuts at structural headers and chunks each section on its own.
func (c *Chunker) splitDocument(content string) []string {
	var sections []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		if isSectionHeader(line) && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	var out []string
	for _, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		out = append(out, c.splitSentences(section)...)
	}
	return out
}

func isSectionHeader(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, p := range sectionHeaders {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// splitWeb packs blank-line separated paragraphs greedily. A paragraph that
// alone exceeds the budget is chunked by sentences.
func (c *Chunker) splitWeb(content string) []string {
	var out []string
	current := ""
	for _, para := range paragraphs.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if c.counter.CountTokens(candidate) <= c.config.ChunkSize {
			current = candidate
			continue
		}

		if current != "" {
			out = append(out, current)
		}
		if c.counter.CountTokens(para) > c.config.ChunkSize {
			out = append(out, c.splitSentences(para)...)
			current = ""
		} else {
			current = para
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// splitSentences packs sentences up to the budget, seeding each new passage
// with trailing sentences of the previous one up to the overlap budget.
// A trailing passage under MinChunkSize is dropped.
func (c *Chunker) splitSentences(content string) []string {
	sentences := splitIntoSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	var current []string
	tokens := 0
	for _, sentence := range sentences {
		n := c.counter.CountTokens(sentence)
		if tokens+n > c.config.ChunkSize && len(current) > 0 {
			out = append(out, strings.Join(current, " "))

			current = c.overlap(current)
			tokens = 0
			for _, s := range current {
				tokens += c.counter.CountTokens(s)
			}
		}
		current = append(current, sentence)
		tokens += n
	}

	if len(current) > 0 {
		tail := strings.Join(current, " ")
		if c.counter.CountTokens(tail) >= c.config.MinChunkSize {
			out = append(out, tail)
		}
	}
	return out
}

// overlap returns the longest run of trailing sentences that fits the overlap budget.
func (c *Chunker) overlap(sentences []string) []string {
	tokens := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := c.counter.CountTokens(sentences[i])
		if tokens+n > c.config.ChunkOverlap {
			break
		}
		tokens += n
		start = i
	}
	return append([]string(nil), sentences[start:]...)
}

// splitIntoSentences splits after runs of . ! ? followed by whitespace,
// keeping the punctuation with its sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		end := loc[0] + len(strings.TrimRightFunc(text[loc[0]:loc[1]], unicode.IsSpace))
		if s := strings.TrimSpace(text[last:end]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
