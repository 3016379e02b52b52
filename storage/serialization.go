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

package storage

import (
	"fmt"

	"github.com/poiesic/secondbrain/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: document: %w", ErrSerializationFailed, err)
	}
	return &doc, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalTag serializes a Tag to bytes.
func MarshalTag(tag *core.Tag) []byte {
	buf := make([]byte, core.TagMUS.Size(*tag))
	core.TagMUS.Marshal(*tag, buf)
	return buf
}

// UnmarshalTag deserializes a Tag from bytes.
func UnmarshalTag(data []byte) (*core.Tag, error) {
	tag, _, err := core.TagMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %w", ErrSerializationFailed, err)
	}
	return &tag, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, core.CheckpointMUS.Size(*checkpoint))
	core.CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := core.CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}
