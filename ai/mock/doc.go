// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Responder,
// ai.KeywordExtractor and ai.AIProvider for use in unit tests. The mocks let
// tests run without external AI services and behave deterministically.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder()
//	mockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("backend down")
//	}
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: deterministic vectors derived from a hash of the words in the text
//   - MockResponder: echoes the query and the titles of the passages it was given
//   - MockKeywordExtractor: the longest distinct words of the text
//   - MockProvider: aggregates the three
package mock
