package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxContextPassages is the number of passages given to a Responder.
	MaxContextPassages = 5

	// MaxPassageChars caps the characters quoted from each passage.
	MaxPassageChars = 500

	// MaxHistoryMessages is the number of prior messages sent with a prompt,
	// five question and answer exchanges.
	MaxHistoryMessages = 10

	// NoContextMessage replaces the context block when nothing was retrieved.
	NoContextMessage = "No relevant information found in your knowledge base."
)

// BuildContext renders the top passages as a numbered context block:
//
//	[1] Source: Machine Learning Fundamentals (pdf) - 2024-01-09
//	Supervised learning uses labelled data...
func (p *Prompt) BuildContext() string {
	if len(p.Passages) == 0 {
		return NoContextMessage
	}

	passages := p.Passages
	if len(passages) > MaxContextPassages {
		passages = passages[:MaxContextPassages]
	}

	parts := make([]string, 0, len(passages))
	for i, passage := range passages {
		title := passage.Title
		if title == "" {
			title = "Unknown"
		}
		source := fmt.Sprintf("Source: %s (%s)", title, passage.SourceType)
		if !passage.CreatedAt.IsZero() {
			source += " - " + passage.CreatedAt.Format("2006-01-02")
		}
		parts = append(parts, fmt.Sprintf("[%d] %s\n%s", i+1, source, Truncate(strings.TrimSpace(passage.Content), MaxPassageChars)))
	}
	return strings.Join(parts, "\n\n")
}

// UserMessage is the final user turn: the context block followed by the question.
func (p *Prompt) UserMessage() string {
	return fmt.Sprintf("Context from my knowledge base:\n%s\n\nQuestion: %s", p.BuildContext(), p.Query)
}

// RecentHistory returns at most the last MaxHistoryMessages messages.
func (p *Prompt) RecentHistory() []Message {
	if len(p.History) <= MaxHistoryMessages {
		return p.History
	}
	return p.History[len(p.History)-MaxHistoryMessages:]
}

// Truncate shortens s to at most n runes, appending "..." when anything was cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
