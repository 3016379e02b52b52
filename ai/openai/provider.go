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
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/secondbrain/ai"
)

// Provider serves embeddings, answers and keywords from OpenAI-compatible
// endpoints. Embeddings go to EmbeddingHost; answers and keywords share the
// chat client on ChatHost.
type Provider struct {
	embedder  *Embedder
	responder *Responder
	keywords  *KeywordExtractor
	closed    atomic.Bool
	logger    *slog.Logger
}

// NewProvider validates config and builds the three services.
// It returns the ai.AIProvider interface so callers stay backend agnostic.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, fmt.Errorf("embedding client for %s: %w", config.EmbeddingHost, err)
	}
	responder, err := newResponder(config)
	if err != nil {
		return nil, fmt.Errorf("chat client for %s: %w", config.ChatHost, err)
	}
	keywords, err := newKeywordExtractor(config)
	if err != nil {
		return nil, fmt.Errorf("keyword client for %s: %w", config.ChatHost, err)
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready",
		"embedding_model", config.EmbeddingModel,
		"chat_model", config.ChatModel)

	return &Provider{
		embedder:  embedder,
		responder: responder,
		keywords:  keywords,
		logger:    logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Responder() ai.Responder {
	return p.responder
}

func (p *Provider) KeywordExtractor() ai.KeywordExtractor {
	return p.keywords
}

// Close is idempotent. The HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.logger.Debug("provider closed")
	}
	return nil
}
