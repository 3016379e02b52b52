package ai

import (
	"context"

	"github.com/poiesic/secondbrain/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Responder turns retrieved passages into a natural-language answer.
// Implementations must be thread-safe for concurrent use.
type Responder interface {
	// Respond generates a complete answer for the prompt.
	Respond(ctx context.Context, prompt *Prompt) (string, error)

	// RespondStream generates an answer and passes each piece of text to fn as it
	// arrives. Returning an error from fn aborts generation. The full answer is
	// returned once the stream ends.
	RespondStream(ctx context.Context, prompt *Prompt, fn func(chunk string) error) (string, error)
}

// KeywordExtractor extracts the most important keywords or phrases from text.
// Used to generate tags automatically during ingestion.
type KeywordExtractor interface {
	// ExtractKeywords returns up to max keywords ordered by importance.
	// Returns an empty slice if nothing relevant is found.
	ExtractKeywords(ctx context.Context, text string, max int) ([]Keyword, error)
}

// Keyword is a phrase identified in text with an importance score from 1 to 10.
type Keyword struct {
	Name       string
	Importance int
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of prior conversation.
type Message struct {
	Role    Role
	Content string
}

// Prompt is everything a Responder needs to answer a query.
type Prompt struct {
	Query    string
	Passages []*core.SearchResult
	History  []Message
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Responder returns the answer generation service.
	Responder() Responder

	// KeywordExtractor returns the keyword extraction service.
	KeywordExtractor() KeywordExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
