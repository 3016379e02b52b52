package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Retry(t *testing.T) {
	errTemporary := errors.New("temporary error")

	tests := []struct {
		name        string
		maxAttempts int
		failures    int
		wantErr     error
		wantCalls   int
	}{
		{name: "first try", maxAttempts: 3, failures: 0, wantCalls: 1},
		{name: "eventual success", maxAttempts: 5, failures: 2, wantCalls: 3},
		{name: "all attempts fail", maxAttempts: 3, failures: 10, wantErr: errTemporary, wantCalls: 3},
		{name: "zero attempts", maxAttempts: 0, wantErr: ErrInvalidMaxAttempts, wantCalls: 0},
		{name: "negative attempts", maxAttempts: -1, wantErr: ErrInvalidMaxAttempts, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			b := Backoff{MaxAttempts: tt.maxAttempts, BaseDelay: time.Millisecond}
			err := b.Retry(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return errTemporary
				}
				return nil
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Backoff{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond}.Retry(ctx, func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("error")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := Backoff{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond}.Retry(ctx, func(context.Context) error {
		calls++
		time.Sleep(30 * time.Millisecond)
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, calls, 3)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, b.delay(1))
	assert.Equal(t, 200*time.Millisecond, b.delay(2))
	assert.Equal(t, 800*time.Millisecond, b.delay(4))
	assert.Equal(t, time.Second, b.delay(5))
	assert.Equal(t, time.Second, b.delay(60))

	uncapped := Backoff{BaseDelay: time.Millisecond}
	assert.Equal(t, 1024*time.Millisecond, uncapped.delay(11))
}
