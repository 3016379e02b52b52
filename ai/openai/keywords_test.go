package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeywordResponse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{
			name:  "clean json",
			reply: `{"keywords":[{"keyword":"supervised learning","importance":9}]}`,
			want:  1,
		},
		{
			name:  "code fenced",
			reply: "```json\n{\"keywords\":[{\"keyword\":\"ml\",\"importance\":7}]}\n```",
			want:  1,
		},
		{
			name:  "missing opening quote",
			reply: `{"keywords":[{"keyword":"ml", importance":7}]}`,
			want:  1,
		},
		{
			name:  "unquoted keys and trailing comma",
			reply: `{keywords:[{keyword:"ml",importance:7},]}`,
			want:  1,
		},
		{
			name:  "empty list",
			reply: `{"keywords":[]}`,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseKeywordResponse(tt.reply)
			require.NoError(t, err)
			assert.Len(t, result.Keywords, tt.want)
		})
	}

	_, err := parseKeywordResponse("not json at all")
	assert.Error(t, err)
}

func TestFilterKeywords(t *testing.T) {
	raw := []keyword{
		{Keyword: "Decision Tree.", Importance: 7},
		{Keyword: "supervised learning", Importance: 10},
		{Keyword: "data", Importance: 3},
		{Keyword: "decision tree", Importance: 6},
		{Keyword: "  ", Importance: 9},
		{Keyword: "regression", Importance: 7},
	}

	got := filterKeywords(raw, 6, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "supervised learning", got[0].Name)
	assert.Equal(t, "decision tree", got[1].Name)
	assert.Equal(t, 7, got[1].Importance)
}

func TestScrubString(t *testing.T) {
	assert.Equal(t, "hello world again", scrubString("  hello\n\n world\tagain\x00 "))
}
