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

package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the answer generation and keyword extraction API.
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "all-minilm", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model identifier used to answer queries and extract keywords.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ChatModel string

	// APIKey is sent as the bearer token. Local servers accept any value.
	APIKey string

	// Dimensions is the fixed embedding length used process-wide.
	// Vectors from the backend are truncated or zero-padded to this length.
	// Default: 384
	Dimensions int

	// Timeout bounds each call to an embedding or chat backend.
	// Default: 30s
	Timeout time.Duration

	// QueryCacheSize is the number of query embeddings kept in memory.
	// Zero disables the cache.
	// Default: 1024
	QueryCacheSize int

	// Temperature is the sampling temperature for answers.
	// Default: 0.7
	Temperature float64

	// MaxTokens caps the length of generated answers.
	// Default: 1000
	MaxTokens int

	// MinImportance is the minimum importance score (1-10) for extracted keywords.
	// Default: 6
	MinImportance int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithAPIKey sets the API key sent to both services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the fixed embedding dimension.
func WithDimensions(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dim
	}
}

// WithTimeout sets the per-call backend timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithQueryCacheSize sets the number of cached query embeddings.
func WithQueryCacheSize(size int) ConfigOption {
	return func(c *Config) {
		c.QueryCacheSize = size
	}
}

// WithMinImportance sets the minimum importance threshold for keyword extraction.
func WithMinImportance(min int) ConfigOption {
	return func(c *Config) {
		c.MinImportance = min
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and chat use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		ChatHost:       defaultHost,
		EmbeddingModel: "all-minilm",
		ChatModel:      "qwen2.5:3b",
		APIKey:         "none",
		Dimensions:     384,
		Timeout:        30 * time.Second,
		QueryCacheSize: 1024,
		Temperature:    0.7,
		MaxTokens:      1000,
		MinImportance:  6,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithDimensions(1536),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.Dimensions < 1 {
		return errors.New("ai config: Dimensions must be positive")
	}
	if c.Timeout < 0 {
		return errors.New("ai config: Timeout cannot be negative")
	}
	if c.QueryCacheSize < 0 {
		return errors.New("ai config: QueryCacheSize cannot be negative")
	}
	if c.MinImportance < 1 || c.MinImportance > 10 {
		return errors.New("ai config: MinImportance must be between 1 and 10")
	}
	return nil
}
