// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/poiesic/secondbrain/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// KeywordExtractor implements ai.KeywordExtractor using OpenAI-compatible chat APIs.
type KeywordExtractor struct {
	client        llms.Model
	minImportance int
	logger        *slog.Logger
}

// keyword is an internal type used for JSON unmarshaling.
// It matches the structure expected by the LLM.
type keyword struct {
	Keyword    string `json:"keyword"`
	Importance int    `json:"importance"`
}

// keywordAnalysis is the wrapper structure for the LLM's JSON response.
type keywordAnalysis struct {
	Keywords []keyword `json:"keywords"`
}

// newKeywordExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newKeywordExtractor(config *ai.Config) (*KeywordExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &KeywordExtractor{
		client:        client,
		minImportance: config.MinImportance,
		logger:        slog.Default().With("component", "openai-keywords"),
	}, nil
}

// NewKeywordExtractor creates a new keyword extractor using the provided configuration.
//
// Returns ai.KeywordExtractor interface to enforce abstraction.
func NewKeywordExtractor(config *ai.Config) (ai.KeywordExtractor, error) {
	return newKeywordExtractor(config)
}

// ExtractKeywords extracts up to max keywords from text using an LLM.
// Keywords below the minimum importance are dropped and the rest are
// returned by descending importance.
func (e *KeywordExtractor) ExtractKeywords(ctx context.Context, text string, max int) ([]ai.Keyword, error) {
	if max <= 0 {
		max = 10
	}
	text = scrubString(text)
	if text == "" {
		return []ai.Keyword{}, nil
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildKeywordPrompt(max))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	// Retry a few times in case of malformed JSON
	var result keywordAnalysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.Keyword{}, nil
		}

		result, lastErr = parseKeywordResponse(response.Choices[0].Content)
		if lastErr == nil {
			break
		}
		e.logger.Warn("error parsing keyword response", "attempt", attempt+1, "err", lastErr)
	}

	if lastErr != nil {
		e.logger.Error("failed to parse keyword response after retries", "err", lastErr)
		return nil, lastErr
	}

	keywords := filterKeywords(result.Keywords, e.minImportance, max)
	e.logger.Debug("extracted keywords", "total", len(result.Keywords), "filtered", len(keywords))
	return keywords, nil
}

// parseKeywordResponse decodes a model reply, repairing it once if the raw text fails to parse.
func parseKeywordResponse(reply string) (keywordAnalysis, error) {
	var result keywordAnalysis
	reply = stripCodeFence(reply)
	if err := json.Unmarshal([]byte(reply), &result); err == nil {
		return result, nil
	}
	result = keywordAnalysis{}
	err := json.Unmarshal([]byte(repairJSON(reply)), &result)
	return result, err
}

// filterKeywords normalizes, de-duplicates and ranks keywords.
func filterKeywords(raw []keyword, minImportance, max int) []ai.Keyword {
	seen := make(map[string]bool, len(raw))
	out := make([]ai.Keyword, 0, len(raw))
	for _, k := range raw {
		name := normalizeKeyword(k.Keyword)
		if name == "" || k.Importance < minImportance || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, ai.Keyword{Name: name, Importance: k.Importance})
	}

	slices.SortStableFunc(out, func(a, b ai.Keyword) int {
		return b.Importance - a.Importance
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}
