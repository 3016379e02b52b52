package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeStrict, cfg.Mode)
	assert.Equal(t, 60, cfg.K)
	assert.Equal(t, TemporalFilter, cfg.TemporalMode)
	assert.Equal(t, 0.3, cfg.RelevanceFloor)
	assert.Equal(t, 4, cfg.minTokenLength())
	assert.NoError(t, cfg.Validate())

	cfg.Mode = ModeGraded
	assert.Equal(t, 3, cfg.minTokenLength())
	cfg.MinTokenLength = 5
	assert.Equal(t, 5, cfg.minTokenLength())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "fuzzy" }},
		{name: "unknown temporal mode", mutate: func(c *Config) { c.TemporalMode = "ignore" }},
		{name: "negative k", mutate: func(c *Config) { c.K = -1 }},
		{name: "similarity above one", mutate: func(c *Config) { c.MinSimilarity = 1.5 }},
		{name: "negative floor", mutate: func(c *Config) { c.RelevanceFloor = -0.1 }},
		{name: "negative token length", mutate: func(c *Config) { c.MinTokenLength = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
