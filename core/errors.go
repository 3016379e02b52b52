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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidTag indicates a Tag failed validation.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidFilters indicates search filters failed validation.
	ErrInvalidFilters = errors.New("invalid filters")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidSourceType indicates an unknown SourceType value.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrInvalidStatusTransition indicates a forbidden processing status change.
	ErrInvalidStatusTransition = errors.New("invalid processing status transition")

	// ErrInvalidDateRange indicates an unparseable or inverted date range.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrEmptyTagName indicates the tag Name field is empty.
	ErrEmptyTagName = errors.New("tag name cannot be empty")

	// ErrInvalidColor indicates a tag color is not a #RRGGBB hex value.
	ErrInvalidColor = errors.New("color must be a #RRGGBB hex value")
)
