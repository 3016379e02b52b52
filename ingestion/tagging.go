package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/storage"
)

// DefaultMaxAutoTags caps keyword tags added to one document.
const DefaultMaxAutoTags = 5

// maxKeywordInput bounds the text sent for keyword extraction.
const maxKeywordInput = 4000

// taggingProcessor tags documents with keywords extracted from their content.
type taggingProcessor struct {
	tags      storage.TagRepository
	extractor ai.KeywordExtractor
	maxTags   int
	logger    *slog.Logger
}

var _ processor = (*taggingProcessor)(nil)

// newTaggingProcessor creates a new tagging processor.
func newTaggingProcessor(tags storage.TagRepository, extractor ai.KeywordExtractor, maxTags int, logger *slog.Logger) (processor, error) {
	if tags == nil {
		return nil, ErrTagRepositoryRequired
	}
	if extractor == nil {
		return nil, fmt.Errorf("keyword extractor required")
	}
	if maxTags < 1 {
		maxTags = DefaultMaxAutoTags
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &taggingProcessor{
		tags:      tags,
		extractor: extractor,
		maxTags:   maxTags,
		logger:    logger.With("processor", "tagging"),
	}, nil
}

func (tp *taggingProcessor) name() string {
	return "tagging"
}

// process adds up to maxTags auto-generated tags. Extraction failures are
// logged and leave the document untagged.
func (tp *taggingProcessor) process(ctx context.Context, j *job) error {
	text := j.doc.Content
	if j.doc.Title != "" {
		text = j.doc.Title + "\n\n" + text
	}
	text = ai.Truncate(strings.TrimSpace(text), maxKeywordInput)

	keywords, err := tp.extractor.ExtractKeywords(ctx, text, tp.maxTags)
	if err != nil {
		tp.logger.Warn("keyword extraction failed", "document", j.doc.Id, "err", err)
		return nil
	}

	added := 0
	for _, kw := range keywords {
		if added == tp.maxTags {
			break
		}
		tag, err := tp.tags.GetOrCreateTag(ctx, kw.Name, "", true)
		if err != nil {
			tp.logger.Warn("skipping keyword", "keyword", kw.Name, "err", err)
			continue
		}
		if j.doc.HasTag(tag.Id) {
			continue
		}
		j.doc.Tags = append(j.doc.Tags, tag.Id)
		added++
	}

	tp.logger.Debug("tagged document", "document", j.doc.Id, "tags", added)
	return nil
}
