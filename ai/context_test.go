package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/poiesic/secondbrain/core"
	"github.com/stretchr/testify/assert"
)

func TestPrompt_BuildContext(t *testing.T) {
	t.Run("no passages", func(t *testing.T) {
		p := &Prompt{Query: "anything"}
		assert.Equal(t, NoContextMessage, p.BuildContext())
	})

	t.Run("formats source lines", func(t *testing.T) {
		p := &Prompt{Passages: []*core.SearchResult{
			{
				Title:      "Machine Learning Fundamentals",
				SourceType: core.SourceTypePDF,
				CreatedAt:  time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC),
				Content:    "  Supervised learning uses labelled data.  ",
			},
			{SourceType: core.SourceTypeWeb, Content: "untitled"},
		}}

		expected := "[1] Source: Machine Learning Fundamentals (pdf) - 2024-01-09\n" +
			"Supervised learning uses labelled data.\n\n" +
			"[2] Source: Unknown (web)\nuntitled"
		assert.Equal(t, expected, p.BuildContext())
	})

	t.Run("limits passages and length", func(t *testing.T) {
		passages := make([]*core.SearchResult, 8)
		for i := range passages {
			passages[i] = &core.SearchResult{Title: "doc", SourceType: core.SourceTypeText, Content: strings.Repeat("x", 600)}
		}
		context := (&Prompt{Passages: passages}).BuildContext()

		assert.Equal(t, MaxContextPassages, strings.Count(context, "Source: doc"))
		assert.Contains(t, context, strings.Repeat("x", 500)+"...")
		assert.NotContains(t, context, strings.Repeat("x", 501))
	})
}

func TestPrompt_UserMessage(t *testing.T) {
	p := &Prompt{Query: "what is supervised learning"}
	assert.Equal(t,
		"Context from my knowledge base:\n"+NoContextMessage+"\n\nQuestion: what is supervised learning",
		p.UserMessage())
}

func TestPrompt_RecentHistory(t *testing.T) {
	history := make([]Message, 12)
	for i := range history {
		history[i] = Message{Role: RoleUser, Content: string(rune('a' + i))}
	}
	p := &Prompt{History: history}

	recent := p.RecentHistory()
	assert.Len(t, recent, MaxHistoryMessages)
	assert.Equal(t, "c", recent[0].Content)
	assert.Equal(t, "l", recent[9].Content)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
}
