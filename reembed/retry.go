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

package reembed

import (
	"context"
	"log/slog"
	"time"
)

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	// MaxAttempts counts the first try. Must be greater than 0.
	MaxAttempts int
	// BaseDelay is the wait after the first failure. It doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
}

// Retry calls operation until it succeeds, the attempts run out or ctx is done.
// Returns the error of the last attempt.
func (b Backoff) Retry(ctx context.Context, operation func(context.Context) error) error {
	if b.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == b.MaxAttempts {
			break
		}

		delay := b.delay(attempt)
		slog.Debug("operation failed, retrying", "attempt", attempt, "max_attempts", b.MaxAttempts, "delay", delay, "err", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// delay returns BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (b Backoff) delay(attempt int) time.Duration {
	d := b.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.MaxDelay > 0 && d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}
