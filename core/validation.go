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

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// MaxTime is the open upper bound used for date ranges without an end.
var MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - SourceType must be valid
//   - CreatedAt must not be in the future
//
// NOT validated:
//   - Content (may be empty until extraction completes)
//   - ID (0 is valid from database sequences)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if err := ValidateSourceType(doc.SourceType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !IsValidTimestamp(doc.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must not be blank
//   - DocumentId must be set
//   - Index must not be negative
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.DocumentId == 0 {
		return fmt.Errorf("%w: document id is required", ErrInvalidChunk)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, chunk.Index)
	}

	return nil
}

// ValidateTag validates a Tag according to domain rules.
func ValidateTag(tag *Tag) error {
	if tag == nil {
		return fmt.Errorf("%w: tag is nil", ErrInvalidTag)
	}

	if NormalizeTagName(tag.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTag, ErrEmptyTagName)
	}

	if tag.Color != "" && !colorPattern.MatchString(tag.Color) {
		return fmt.Errorf("%w: %w", ErrInvalidTag, ErrInvalidColor)
	}

	return nil
}

// ValidateSourceType validates that a SourceType has a valid value.
func ValidateSourceType(st SourceType) error {
	if _, ok := sourceTypeNames[st]; !ok {
		return fmt.Errorf("%w: value %d", ErrInvalidSourceType, st)
	}
	return nil
}

// ParseSourceType converts a source type name such as "pdf" into a SourceType.
func ParseSourceType(name string) (SourceType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for st, n := range sourceTypeNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSourceType, name)
}

// ValidateTransition checks a processing status change.
// Allowed: pending -> processing, processing -> completed, processing -> failed.
func ValidateTransition(from, to ProcessingStatus) error {
	switch {
	case from == StatusPending && to == StatusProcessing:
		return nil
	case from == StatusProcessing && (to == StatusCompleted || to == StatusFailed):
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
}

// ValidateFilters validates search filters.
func ValidateFilters(f *Filters) error {
	if f == nil {
		return nil
	}
	for _, st := range f.SourceTypes {
		if err := ValidateSourceType(st); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilters, err)
		}
	}
	if f.DateRange != nil && f.DateRange.End.Before(f.DateRange.Start) {
		return fmt.Errorf("%w: %w: end before start", ErrInvalidFilters, ErrInvalidDateRange)
	}
	for _, tag := range f.Tags {
		if NormalizeTagName(tag) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidFilters, ErrEmptyTagName)
		}
	}
	return nil
}

// ParseDateRange parses user supplied range bounds.
// Each bound accepts RFC 3339 or a plain date (2006-01-02); a plain end date
// covers that whole day. An empty bound leaves that side open. Returns nil when
// both bounds are empty.
func ParseDateRange(start, end string) (*DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}

	r := &DateRange{End: MaxTime}
	if start != "" {
		t, _, err := parseBound(start)
		if err != nil {
			return nil, fmt.Errorf("%w: start %q", ErrInvalidDateRange, start)
		}
		r.Start = t
	}
	if end != "" {
		t, dateOnly, err := parseBound(end)
		if err != nil {
			return nil, fmt.Errorf("%w: end %q", ErrInvalidDateRange, end)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.End = t
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidDateRange)
	}
	return r, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, true, err
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
