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

package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// TagID returns the content-based ID for a tag name.
// Tag names are case-insensitive.
func TagID(name string) ID {
	return IDFromContent("tag:" + NormalizeTagName(name))
}

// NormalizeTagName lowercases and trims a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SourceType identifies the kind of material a document was extracted from.
type SourceType int

const (
	// SourceTypeText is plain text or markdown.
	SourceTypeText SourceType = iota + 1
	// SourceTypePDF is text extracted from a PDF or office document.
	SourceTypePDF
	// SourceTypeAudio is a speech-to-text transcript.
	SourceTypeAudio
	// SourceTypeWeb is content scraped from a web page.
	SourceTypeWeb
	// SourceTypeImage is OCR text extracted from an image.
	SourceTypeImage
)

var sourceTypeNames = map[SourceType]string{
	SourceTypeText:  "text",
	SourceTypePDF:   "pdf",
	SourceTypeAudio: "audio",
	SourceTypeWeb:   "web",
	SourceTypeImage: "image",
}

// SourceTypes lists every valid source type in declaration order.
var SourceTypes = []SourceType{
	SourceTypeText,
	SourceTypePDF,
	SourceTypeAudio,
	SourceTypeWeb,
	SourceTypeImage,
}

func (s SourceType) String() string {
	if name, ok := sourceTypeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ProcessingStatus tracks a document through the ingestion lifecycle.
type ProcessingStatus int

const (
	// StatusPending means the document is stored but not yet processed.
	StatusPending ProcessingStatus = iota + 1
	// StatusProcessing means chunking and embedding are in progress.
	StatusProcessing
	// StatusCompleted means the document is searchable.
	StatusCompleted
	// StatusFailed is terminal; the error is kept in Metadata["error"].
	StatusFailed
)

func (s ProcessingStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MetadataError is the metadata key holding the failure reason of a failed document.
const MetadataError = "error"

// Chunk metadata keys added by the chunker.
const (
	MetadataChunkIndex  = "chunk_index"
	MetadataChunkLength = "chunk_length"
)

// Document is a piece of source material in the knowledge base.
// It owns its chunks: deleting a document deletes all of them.
type Document struct {
	Id         ID
	SourceType SourceType
	SourcePath string
	Title      string
	Author     string
	Content    string
	CreatedAt  time.Time // Authoring or ingestion time, immutable once set
	IngestedAt time.Time // When the document was inserted into the database
	UpdatedAt  time.Time // When the document was last updated
	Status     ProcessingStatus
	Size       int64
	Tags       []ID
	Metadata   map[string]string
}

// HasTag reports whether the document carries the tag.
func (d *Document) HasTag(id ID) bool {
	for _, t := range d.Tags {
		if t == id {
			return true
		}
	}
	return false
}

// Chunk is a retrieval-sized passage of a document.
type Chunk struct {
	Id         ID
	DocumentId ID
	Content    string
	Index      int       // 0-based position within the document
	TokenCount int       // Approximate, for sizing only
	Vector     []float32 // Embedding vector (populated by processors)
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Tag is a user or system label attached to documents.
type Tag struct {
	Id            ID
	Name          string
	Color         string // Hex color, e.g. "#3b82f6"
	AutoGenerated bool
	InsertedAt    time.Time
}

// Exchange is one question/answer turn of a conversation.
type Exchange struct {
	Id             string
	ConversationId string
	Query          string
	Response       string
	ContextChunks  []ID
	ResponseTime   time.Duration
	CreatedAt      time.Time
}

// Checkpoint records how far a long-running processor got so it can resume.
type Checkpoint struct {
	ProcessorType string
	LastId        ID
	UpdatedAt     time.Time
}

// DateRange is an inclusive timestamp range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Filters restrict which chunks a search considers.
// Empty fields do not filter.
type Filters struct {
	SourceTypes []SourceType
	DateRange   *DateRange
	Tags        []string
}

// IsEmpty reports whether no filter is set.
func (f *Filters) IsEmpty() bool {
	return f == nil || (len(f.SourceTypes) == 0 && f.DateRange == nil && len(f.Tags) == 0)
}

// Candidate pairs a chunk with its parent document for ranking.
type Candidate struct {
	Chunk    *Chunk
	Document *Document
}

// SearchType labels which signal produced a search result.
type SearchType string

const (
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeKeyword  SearchType = "keyword"
	SearchTypeHybrid   SearchType = "hybrid"
)

// Diagnostics explains how a result was scored.
type Diagnostics struct {
	SemanticRank       int // 0-based rank in the semantic list, -1 if absent
	LexicalRank        int // 0-based rank in the lexical list, -1 if absent
	SemanticSimilarity float64
	LexicalScore       float64
	MatchedTokens      int
	MeaningfulTokens   int
	Coverage           float64
	ExactPhrase        bool
	TemporalFactor     float64 // 1 unless temporal boosting applied
}

// SearchResult is a ranked passage returned to callers.
type SearchResult struct {
	ChunkId     ID
	DocumentId  ID
	Content     string
	Title       string
	SourceType  SourceType
	CreatedAt   time.Time
	Score       float64 // Normalized relevance in [0,1]
	FusionScore float64 // Raw reciprocal rank fusion score
	SearchType  SearchType
	Diagnostics Diagnostics
}
