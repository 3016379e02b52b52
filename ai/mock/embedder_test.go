package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/secondbrain/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVector(t *testing.T) {
	a := GenerateVector("Supervised learning uses labelled data", 64)
	b := GenerateVector("supervised LEARNING uses labelled data!", 64)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "case and punctuation are ignored")
	assert.InDelta(t, 1.0, ai.Similarity(a, a), 1e-6)
	assert.Equal(t, make([]float32, 64), GenerateVector("  ...  ", 64))
}

func TestGenerateVector_SharedWordsAreCloser(t *testing.T) {
	query := GenerateVector("what is supervised learning", DefaultDimensions)
	related := GenerateVector("supervised learning trains models on labelled examples", DefaultDimensions)
	unrelated := GenerateVector("cooking recipes for pasta", DefaultDimensions)

	assert.Greater(t, ai.Similarity(query, related), ai.Similarity(query, unrelated))
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	vec, err := m.EmbedText(ctx, "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)

	vectors, err := m.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, 2, m.CallCount())

	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("down")
	}
	_, err = m.EmbedText(ctx, "x")
	assert.Error(t, err)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedText(ctx, "x")
	assert.NoError(t, err)
}

func TestMockResponder_Stream(t *testing.T) {
	m := NewMockResponder()
	prompt := &ai.Prompt{Query: "what is supervised learning"}

	var streamed string
	answer, err := m.RespondStream(context.Background(), prompt, func(chunk string) error {
		streamed += chunk
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, answer, streamed)
	assert.Same(t, prompt, m.LastPrompt)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockKeywordExtractor(t *testing.T) {
	m := NewMockKeywordExtractor()

	keywords, err := m.ExtractKeywords(context.Background(), "Supervised learning and reinforcement learning", 2)
	require.NoError(t, err)
	require.Len(t, keywords, 2)
	assert.Equal(t, "reinforcement", keywords[0].Name)
	assert.Equal(t, "supervised", keywords[1].Name)
}
