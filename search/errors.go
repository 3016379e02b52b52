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

package search

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrGeneratorRequired is returned when an embedding generator is not provided.
	ErrGeneratorRequired = errors.New("embedding generator required")

	// ErrInvalidLimit is returned for a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidConfig is returned for an invalid search configuration.
	ErrInvalidConfig = errors.New("invalid search config")

	// ErrAllSignalsFailed is returned when neither the semantic nor the lexical
	// pass produced a result list. It is joined with both causes.
	ErrAllSignalsFailed = errors.New("all search signals failed")
)
