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

package mock

import "github.com/poiesic/secondbrain/ai"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder  *MockEmbedder
	responder *MockResponder
	keywords  *MockKeywordExtractor
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use the GetMock* accessors to reach concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		responder: NewMockResponder(),
		keywords:  NewMockKeywordExtractor(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// Nil services are replaced by defaults.
func NewMockProviderWithServices(embedder *MockEmbedder, responder *MockResponder, keywords *MockKeywordExtractor) ai.AIProvider {
	if embedder == nil {
		embedder = NewMockEmbedder()
	}
	if responder == nil {
		responder = NewMockResponder()
	}
	if keywords == nil {
		keywords = NewMockKeywordExtractor()
	}
	return &MockProvider{
		embedder:  embedder,
		responder: responder,
		keywords:  keywords,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Responder returns the mock responder.
func (p *MockProvider) Responder() ai.Responder {
	return p.responder
}

// KeywordExtractor returns the mock keyword extractor.
func (p *MockProvider) KeywordExtractor() ai.KeywordExtractor {
	return p.keywords
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockResponder returns the underlying mock responder for test assertions.
func (p *MockProvider) GetMockResponder() *MockResponder {
	return p.responder
}

// GetMockKeywordExtractor returns the underlying mock keyword extractor for test assertions.
func (p *MockProvider) GetMockKeywordExtractor() *MockKeywordExtractor {
	return p.keywords
}
