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

// Package openai talks to OpenAI-compatible servers (OpenAI itself, Ollama,
// LocalAI, vLLM) through langchaingo.
//
// The embedder feeds ingestion, search and reembedding. The responder answers
// questions over retrieved passages for the assistant, and the keyword
// extractor proposes automatic tags for new documents. Keyword replies from
// small local models are often malformed JSON; they are repaired before
// parsing.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),  // /v1 added automatically
//	    ai.WithEmbeddingModel("all-minilm"),
//	    ai.WithChatModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "sample text")
//	answer, err := provider.Responder().Respond(ctx, &ai.Prompt{Query: "what did I read last week?"})
//	keywords, err := provider.KeywordExtractor().ExtractKeywords(ctx, document.Content, 10)
package openai
