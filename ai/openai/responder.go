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
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/secondbrain/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Responder implements ai.Responder using OpenAI-compatible chat APIs.
type Responder struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

// newResponder is an internal constructor that returns the concrete type.
func newResponder(config *ai.Config) (*Responder, error) {
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

	return &Responder{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		timeout:     config.Timeout,
		logger:      slog.Default().With("component", "openai-responder", "model", config.ChatModel),
	}, nil
}

// NewResponder creates a new responder using the provided configuration.
//
// Returns ai.Responder interface to enforce abstraction.
func NewResponder(config *ai.Config) (ai.Responder, error) {
	return newResponder(config)
}

// Respond generates a complete answer for the prompt.
func (r *Responder) Respond(ctx context.Context, prompt *ai.Prompt) (string, error) {
	return r.generate(ctx, prompt, nil)
}

// RespondStream generates an answer, passing each streamed piece to fn.
func (r *Responder) RespondStream(ctx context.Context, prompt *ai.Prompt, fn func(chunk string) error) (string, error) {
	if fn == nil {
		return "", errors.New("stream callback is required")
	}
	return r.generate(ctx, prompt, fn)
}

func (r *Responder) generate(ctx context.Context, prompt *ai.Prompt, fn func(chunk string) error) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	options := []llms.CallOption{
		llms.WithTemperature(r.temperature),
		llms.WithMaxTokens(r.maxTokens),
	}

	var streamed strings.Builder
	if fn != nil {
		options = append(options, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			streamed.Write(chunk)
			return fn(string(chunk))
		}))
	}

	r.logger.Debug("generating answer",
		"passages", len(prompt.Passages),
		"history", len(prompt.RecentHistory()),
		"streaming", fn != nil)

	response, err := r.client.GenerateContent(ctx, buildAnswerMessages(prompt), options...)
	if err != nil {
		r.logger.Error("failed to generate answer", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		r.logger.Warn("no choices returned from model")
		return streamed.String(), nil
	}
	return response.Choices[0].Content, nil
}
