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

package badger

import "errors"

// Repositories bundles every repository sharing one backend.
type Repositories struct {
	Backend     *Backend
	Documents   *DocumentRepository
	Chunks      *ChunkRepository
	Tags        *TagRepository
	Checkpoints *CheckpointRepository
}

// NewRepositories creates all repositories on top of backend.
// The backend is not closed on failure.
func NewRepositories(backend *Backend) (*Repositories, error) {
	docs, err := NewDocumentRepository(backend)
	if err != nil {
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		docs.Close()
		return nil, err
	}

	return &Repositories{
		Backend:     backend,
		Documents:   docs,
		Chunks:      chunks,
		Tags:        NewTagRepository(backend),
		Checkpoints: NewCheckpointRepository(backend),
	}, nil
}

// Open opens the database at path and creates all repositories.
func Open(path string) (*Repositories, error) {
	return open(path, false)
}

// NewMemoryRepositories creates repositories over an in-memory database for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return open("", true)
}

func open(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	repos, err := NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return repos, nil
}

// Close releases the repositories' sequences, then the backend.
func (r *Repositories) Close() error {
	return errors.Join(
		r.Documents.Close(),
		r.Chunks.Close(),
		r.Tags.Close(),
		r.Backend.Close(),
	)
}
