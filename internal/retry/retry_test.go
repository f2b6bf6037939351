package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBad = errors.New("bad query")

func TestWithRetrySucceedsFirstTime(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 3}, func(int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryPassesAttempt(t *testing.T) {
	var seen []int
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 2}, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt == 1 {
			return errBad
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestWithRetryExhausted(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 2, Delay: time.Millisecond}, func(int) error {
		calls++
		return errBad
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBad)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestWithRetryStopsOnTerminalError(t *testing.T) {
	terminal := errors.New("server error")
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return errors.Is(err, errBad) },
	}, func(int) error {
		calls++
		return terminal
	})
	assert.Equal(t, terminal, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, RetryConfig{MaxAttempts: 3, Delay: time.Hour}, func(int) error {
		calls++
		cancel()
		return errBad
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetrySingleAttemptReturnsRawError(t *testing.T) {
	err := WithRetry(context.Background(), RetryConfig{}, func(int) error { return errBad })
	assert.Equal(t, errBad, err)
}
