package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	permanent := errors.New("constraint failed")

	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			attempts:  3,
			wantCalls: 1,
		},
		{
			name:      "retries busy database then succeeds",
			failures:  []error{ErrDatabaseBusy, ErrDatabaseBusy},
			attempts:  3,
			wantCalls: 3,
		},
		{
			name:      "gives up after max attempts",
			failures:  []error{ErrDatabaseBusy, ErrDatabaseBusy, ErrDatabaseBusy},
			attempts:  3,
			wantCalls: 3,
			wantErr:   ErrMaxRetries,
		},
		{
			name:      "does not retry permanent errors",
			failures:  []error{permanent},
			attempts:  3,
			wantCalls: 1,
			wantErr:   permanent,
		},
		{
			name:      "honours explicit retryable wrapper",
			failures:  []error{&RetryableError{Err: permanent, Retryable: true}},
			attempts:  2,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			}, fastRetry(tt.attempts))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastRetry(5)
	opts.InitialDelay = time.Hour
	err := WithRetry(ctx, func() error { return ErrDatabaseBusy }, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrDatabaseBusy))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(&RetryableError{Err: ErrNotFound}))
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not read statement", ErrNotFound)
	assert.Equal(t, "could not read statement: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)

	var ue *UserError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "could not read statement", ue.UserMessage)
}
