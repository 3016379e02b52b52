package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/poiesic/secondbrain/ai"
)

// MockResponder is a test double for ai.Responder.
type MockResponder struct {
	// RespondFunc is called by Respond and RespondStream if set.
	RespondFunc func(ctx context.Context, prompt *ai.Prompt) (string, error)

	// LastPrompt is the most recent prompt received.
	LastPrompt *ai.Prompt

	callCount atomic.Int64
}

// NewMockResponder creates a mock responder with default behavior.
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

// Respond returns a canned answer naming the query and the passage titles.
func (m *MockResponder) Respond(ctx context.Context, prompt *ai.Prompt) (string, error) {
	m.callCount.Add(1)
	m.LastPrompt = prompt

	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return cannedAnswer(prompt), nil
}

// RespondStream delivers the answer word by word.
func (m *MockResponder) RespondStream(ctx context.Context, prompt *ai.Prompt, fn func(chunk string) error) (string, error) {
	answer, err := m.Respond(ctx, prompt)
	if err != nil {
		return "", err
	}
	for i, word := range strings.Fields(answer) {
		if i > 0 {
			word = " " + word
		}
		if err := fn(word); err != nil {
			return "", err
		}
	}
	return answer, nil
}

// CallCount returns the number of answers generated.
func (m *MockResponder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count, last prompt and custom function.
func (m *MockResponder) Reset() {
	m.callCount.Store(0)
	m.LastPrompt = nil
	m.RespondFunc = nil
}

func cannedAnswer(prompt *ai.Prompt) string {
	if len(prompt.Passages) == 0 {
		return fmt.Sprintf("I could not find anything about %q in your knowledge base.", prompt.Query)
	}
	titles := make([]string, 0, len(prompt.Passages))
	for _, p := range prompt.Passages {
		titles = append(titles, p.Title)
	}
	return fmt.Sprintf("Answer to %q based on: %s.", prompt.Query, strings.Join(titles, ", "))
}
