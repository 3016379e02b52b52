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

// Package config loads the process-level TOML configuration file.
//
// A file only needs the keys it changes; everything else keeps the value from
// Default:
//
//	data_dir = "~/.secondbrain"
//
//	[ai]
//	host = "http://localhost:11434"
//	embedding_model = "nomic-embed-text"
//	dimensions = 768
//
//	[search]
//	mode = "graded"
//	temporal_mode = "boost"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/ingestion"
	"github.com/poiesic/secondbrain/search"
)

// ErrInvalidConfig indicates a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a string such as "30s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Tokenizers for chunk sizing.
const (
	TokenizerApproximate = "approximate"
	TokenizerTiktoken    = "tiktoken"
)

// Config is the complete process configuration.
type Config struct {
	// DataDir holds the document store, the keyword index and the history database.
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	AI        AIConfig        `toml:"ai"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Ingestion IngestionConfig `toml:"ingestion"`
	Search    SearchConfig    `toml:"search"`
	Tracing   TracingConfig   `toml:"tracing"`
}

// AIConfig configures the embedding and chat backends.
type AIConfig struct {
	// Host sets both EmbeddingHost and ChatHost when they are empty.
	Host           string   `toml:"host"`
	EmbeddingHost  string   `toml:"embedding_host"`
	ChatHost       string   `toml:"chat_host"`
	EmbeddingModel string   `toml:"embedding_model"`
	ChatModel      string   `toml:"chat_model"`
	APIKey         string   `toml:"api_key"`
	Dimensions     int      `toml:"dimensions"`
	Timeout        Duration `toml:"timeout"`
	QueryCacheSize int      `toml:"query_cache_size"`
	Temperature    float64  `toml:"temperature"`
	MaxTokens      int      `toml:"max_tokens"`
	MinImportance  int      `toml:"min_importance"`
}

// ChunkingConfig sizes passages in tokens.
type ChunkingConfig struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
	MinChunkSize int `toml:"min_chunk_size"`
	// Tokenizer is "approximate" or "tiktoken". Tiktoken may download its
	// encoding on first use and falls back to approximate counts.
	Tokenizer string `toml:"tokenizer"`
}

// IngestionConfig configures the asynchronous pipeline.
type IngestionConfig struct {
	PoolSize int `toml:"pool_size"` // Zero uses half the CPUs
	// AutoTags is the number of keyword tags added to each document. Zero disables it.
	AutoTags int      `toml:"auto_tags"`
	Timeout  Duration `toml:"timeout"`
}

// SearchConfig configures ranking.
type SearchConfig struct {
	Mode           string  `toml:"mode"`
	K              int     `toml:"k"`
	TemporalMode   string  `toml:"temporal_mode"`
	MinSimilarity  float64 `toml:"min_similarity"`
	RelevanceFloor float64 `toml:"relevance_floor"`
	MinTokenLength int     `toml:"min_token_length"`
	// KeywordIndex narrows lexical candidates through the bleve index.
	KeywordIndex bool `toml:"keyword_index"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter    string  `toml:"exporter"`
	Endpoint    string  `toml:"endpoint"` // OTLP HTTP endpoint, host:port
	Insecure    bool    `toml:"insecure"`
	SampleRatio float64 `toml:"sample_ratio"`
	ServiceName string  `toml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	chunker := ingestion.DefaultChunkerConfig()
	searchCfg := search.DefaultConfig()

	dataDir := ".secondbrain"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".secondbrain")
	}

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		AI: AIConfig{
			EmbeddingHost:  aiCfg.EmbeddingHost,
			ChatHost:       aiCfg.ChatHost,
			EmbeddingModel: aiCfg.EmbeddingModel,
			ChatModel:      aiCfg.ChatModel,
			APIKey:         aiCfg.APIKey,
			Dimensions:     aiCfg.Dimensions,
			Timeout:        Duration{aiCfg.Timeout},
			QueryCacheSize: aiCfg.QueryCacheSize,
			Temperature:    aiCfg.Temperature,
			MaxTokens:      aiCfg.MaxTokens,
			MinImportance:  aiCfg.MinImportance,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    chunker.ChunkSize,
			ChunkOverlap: chunker.ChunkOverlap,
			MinChunkSize: chunker.MinChunkSize,
			Tokenizer:    TokenizerApproximate,
		},
		Ingestion: IngestionConfig{
			AutoTags: 3,
			Timeout:  Duration{5 * time.Minute},
		},
		Search: SearchConfig{
			Mode:           string(searchCfg.Mode),
			K:              searchCfg.K,
			TemporalMode:   string(searchCfg.TemporalMode),
			RelevanceFloor: searchCfg.RelevanceFloor,
			KeywordIndex:   true,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1,
			ServiceName: "secondbrain",
		},
	}
}

// Load reads the TOML file at path over Default and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.AI.Host != "" {
		if cfg.AI.EmbeddingHost == ai.DefaultConfig().EmbeddingHost {
			cfg.AI.EmbeddingHost = cfg.AI.Host
		}
		if cfg.AI.ChatHost == ai.DefaultConfig().ChatHost {
			cfg.AI.ChatHost = cfg.AI.Host
		}
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Chunking.Tokenizer {
	case "", TokenizerApproximate, TokenizerTiktoken:
	default:
		return fmt.Errorf("%w: unknown tokenizer %q", ErrInvalidConfig, c.Chunking.Tokenizer)
	}
	if c.Ingestion.PoolSize < 0 || c.Ingestion.AutoTags < 0 {
		return fmt.Errorf("%w: ingestion pool_size and auto_tags must not be negative", ErrInvalidConfig)
	}
	if err := c.SearchConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("%w: unknown tracing exporter %q", ErrInvalidConfig, c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing sample_ratio must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}

// AIConfig converts the ai section.
func (c *Config) AIConfig() *ai.Config {
	return &ai.Config{
		EmbeddingHost:  c.AI.EmbeddingHost,
		ChatHost:       c.AI.ChatHost,
		EmbeddingModel: c.AI.EmbeddingModel,
		ChatModel:      c.AI.ChatModel,
		APIKey:         c.AI.APIKey,
		Dimensions:     c.AI.Dimensions,
		Timeout:        c.AI.Timeout.Duration,
		QueryCacheSize: c.AI.QueryCacheSize,
		Temperature:    c.AI.Temperature,
		MaxTokens:      c.AI.MaxTokens,
		MinImportance:  c.AI.MinImportance,
	}
}

// ChunkerConfig converts the chunking section.
func (c *Config) ChunkerConfig() ingestion.ChunkerConfig {
	return ingestion.ChunkerConfig{
		ChunkSize:    c.Chunking.ChunkSize,
		ChunkOverlap: c.Chunking.ChunkOverlap,
		MinChunkSize: c.Chunking.MinChunkSize,
	}
}

// SearchConfig converts the search section.
func (c *Config) SearchConfig() search.Config {
	cfg := search.DefaultConfig()
	cfg.Mode = search.Mode(c.Search.Mode)
	cfg.K = c.Search.K
	cfg.TemporalMode = search.TemporalMode(c.Search.TemporalMode)
	cfg.MinSimilarity = c.Search.MinSimilarity
	cfg.RelevanceFloor = c.Search.RelevanceFloor
	cfg.MinTokenLength = c.Search.MinTokenLength
	return cfg
}

// StorePath is the badger directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "store")
}

// IndexPath is the bleve index directory.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "keywords.bleve")
}

// HistoryPath is the sqlite conversation database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
