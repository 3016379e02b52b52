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

// Package assistant answers questions from the knowledge base.
//
// Ask searches for passages relevant to the question, loads the recent turns
// of the conversation, has a Responder write the answer and records the
// exchange so later questions in the same conversation see it.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/search"
	"github.com/poiesic/secondbrain/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HistoryExchanges is the number of prior exchanges sent with a question.
	HistoryExchanges = 5

	// MaxSources is the number of passages returned as sources.
	MaxSources = 5

	// ExcerptChars caps the characters of a source excerpt.
	ExcerptChars = 200
)

var (
	ErrSearcherRequired  = errors.New("searcher is required")
	ErrResponderRequired = errors.New("responder is required")
	ErrEmptyQuery        = errors.New("query cannot be empty")
)

// Searcher finds the passages an answer is grounded on.
// *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, filters *core.Filters, limit int) (*search.Response, error)
}

// Request is a question, optionally continuing a conversation.
type Request struct {
	Query string
	// ConversationID continues an earlier conversation. Empty starts a new one.
	ConversationID string
	Filters        *core.Filters
}

// Source is a passage the answer drew on.
type Source struct {
	DocumentId core.ID
	ChunkId    core.ID
	Title      string
	SourceType core.SourceType
	CreatedAt  time.Time
	Excerpt    string
	Score      float64
}

// Answer is the response to a Request.
type Answer struct {
	Response       string
	ConversationID string
	// ExchangeID is empty when the exchange could not be recorded.
	ExchangeID   string
	Sources      []Source
	Degraded     *search.Degradation
	ResponseTime time.Duration
}

// Assistant answers questions with retrieval-augmented generation.
type Assistant struct {
	searcher  Searcher
	responder ai.Responder
	history   storage.HistoryStore
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant) error

// WithHistory records exchanges and replays recent ones as conversation context.
func WithHistory(history storage.HistoryStore) Option {
	return func(a *Assistant) error {
		a.history = history
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// New creates an Assistant.
func New(searcher Searcher, responder ai.Responder, opts ...Option) (*Assistant, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if responder == nil {
		return nil, ErrResponderRequired
	}
	a := &Assistant{
		searcher:  searcher,
		responder: responder,
		tracer:    otel.Tracer("github.com/poiesic/secondbrain/assistant"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "assistant")
	return a, nil
}

// Ask answers req.
func (a *Assistant) Ask(ctx context.Context, req *Request) (*Answer, error) {
	return a.answer(ctx, req, func(ctx context.Context, prompt *ai.Prompt) (string, error) {
		return a.responder.Respond(ctx, prompt)
	})
}

// AskStream answers req, passing the answer to fn piece by piece as it is
// generated. An error from fn aborts generation and nothing is recorded.
func (a *Assistant) AskStream(ctx context.Context, req *Request, fn func(chunk string) error) (*Answer, error) {
	return a.answer(ctx, req, func(ctx context.Context, prompt *ai.Prompt) (string, error) {
		return a.responder.RespondStream(ctx, prompt, fn)
	})
}

func (a *Assistant) answer(ctx context.Context, req *Request, respond func(context.Context, *ai.Prompt) (string, error)) (*Answer, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	ctx, span := a.tracer.Start(ctx, "assistant.ask")
	defer span.End()

	started := time.Now()
	answer := &Answer{ConversationID: req.ConversationID, Sources: []Source{}}
	prompt := &ai.Prompt{Query: req.Query}

	resp, err := a.searcher.Search(ctx, req.Query, req.Filters, ai.MaxContextPassages)
	switch {
	case err == nil:
		prompt.Passages = resp.Results
		answer.Degraded = resp.Degraded
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, search.ErrAllSignalsFailed):
		a.logger.Warn("retrieval unavailable, answering without context", "err", err)
	default:
		return nil, err
	}

	prompt.History = a.loadHistory(ctx, req.ConversationID)

	text, err := respond(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	answer.Response = text
	answer.ResponseTime = time.Since(started)
	answer.Sources = sources(prompt.Passages)

	a.record(ctx, answer, prompt)
	span.SetAttributes(
		attribute.Int("assistant.passages", len(prompt.Passages)),
		attribute.Int("assistant.history", len(prompt.History)),
	)
	return answer, nil
}

// loadHistory returns the recent turns of a conversation as messages.
// Failures only cost context, so they are logged.
func (a *Assistant) loadHistory(ctx context.Context, conversationID string) []ai.Message {
	if a.history == nil || conversationID == "" {
		return nil
	}
	exchanges, err := a.history.RecentExchanges(ctx, conversationID, HistoryExchanges)
	if err != nil {
		a.logger.Warn("loading conversation history", "conversation", conversationID, "err", err)
		return nil
	}
	messages := make([]ai.Message, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		messages = append(messages,
			ai.Message{Role: ai.RoleUser, Content: ex.Query},
			ai.Message{Role: ai.RoleAssistant, Content: ex.Response},
		)
	}
	return messages
}

func (a *Assistant) record(ctx context.Context, answer *Answer, prompt *ai.Prompt) {
	if a.history == nil {
		return
	}
	chunkIDs := make([]core.ID, len(prompt.Passages))
	for i, p := range prompt.Passages {
		chunkIDs[i] = p.ChunkId
	}
	exchange, err := a.history.AddExchange(ctx, &core.Exchange{
		ConversationId: answer.ConversationID,
		Query:          prompt.Query,
		Response:       answer.Response,
		ContextChunks:  chunkIDs,
		ResponseTime:   answer.ResponseTime,
	})
	if err != nil {
		a.logger.Error("recording exchange", "err", err)
		return
	}
	answer.ExchangeID = exchange.Id
	answer.ConversationID = exchange.ConversationId
}

func sources(passages []*core.SearchResult) []Source {
	if len(passages) > MaxSources {
		passages = passages[:MaxSources]
	}
	out := make([]Source, len(passages))
	for i, p := range passages {
		out[i] = Source{
			DocumentId: p.DocumentId,
			ChunkId:    p.ChunkId,
			Title:      p.Title,
			SourceType: p.SourceType,
			CreatedAt:  p.CreatedAt,
			Excerpt:    ai.Truncate(strings.TrimSpace(p.Content), ExcerptChars),
			Score:      p.Score,
		}
	}
	return out
}
