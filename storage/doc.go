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


// Package storage provides the storage abstraction layer for the knowledge base.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic, plus the MUS-based record serialization shared by the
// backends.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interfaces to prevent
// accidental coupling to a specific backend:
//
//	history, err := sqlite.NewHistoryStore(path)  // returns storage.HistoryStore
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Architecture
//
//   - DocumentRepository: documents with date, source type and tag indices
//   - ChunkRepository: passages, filtered candidate lookup and vector similarity
//   - TagRepository: tags with content-derived IDs
//   - CheckpointRepository: resumable processor progress
//   - HistoryStore: conversation exchanges and query analytics
//
// # Backends
//
//   - storage/badger: documents, chunks, tags and checkpoints in BadgerDB
//   - storage/bleve: full-text keyword index used to narrow the lexical pass
//   - storage/sqlite: conversation history in SQLite
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
