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

// Package ai provides abstractions for the AI services used by the knowledge base.
//
// The package defines the interfaces the rest of the module depends on:
//
//   - Embedder: generates vector embeddings from text
//   - Responder: answers a question from retrieved passages
//   - KeywordExtractor: picks out keywords used as automatic tags
//   - AIProvider: aggregates the services for initialization and shutdown
//
// On top of the raw Embedder sits the Generator, which fixes the vector
// dimension for the whole process, turns backend failures into zero vectors
// and caches query embeddings. Similarity and MostSimilar are the cosine
// helpers used by search.
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and check call counts.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	gen, err := ai.NewGenerator(provider.Embedder(), config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gen.Close()
//
//	vector, err := gen.Embed(ctx, "supervised learning")
package ai
