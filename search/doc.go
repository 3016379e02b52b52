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

// Package search ranks stored passages against a free-text query.
//
// The Searcher runs two independent signals over the same filtered candidate
// set and fuses them with Reciprocal Rank Fusion:
//   - Semantic: cosine similarity between the query vector and each chunk's vector
//   - Lexical: token coverage of the query in each chunk and its document title
//
// The lexical Matcher has two modes. Graded mode keeps any candidate whose
// weighted coverage score clears a relevance floor. Strict mode keeps only
// exact phrase matches or candidates covering at least 80% of the meaningful
// query tokens, and in strict mode the fused list is restricted to those
// candidates.
//
// Temporal phrases in the query ("last week") become a date range that either
// filters candidates or boosts results by temporal relevance.
//
// A failing signal degrades the search to the other one; the Response says
// which signal was lost and why.
package search
