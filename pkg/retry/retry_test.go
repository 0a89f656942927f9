package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "relay/pkg/errors"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxElapsedTime:  time.Second,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("always failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_FatalShortCircuits(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return apperrors.ErrUnhandledMessage
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnhandledMessage)
	assert.Equal(t, 1, calls, "fatal errors are never redelivered")
}

func TestDo_WrappedFatalShortCircuits(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return apperrors.Wrap(errors.New("boom"), apperrors.ErrRejected)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := fastPolicy(100)
	policy.InitialInterval = 50 * time.Millisecond

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, policy, func() error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestDoWithCallback_ReportsRetries(t *testing.T) {
	type retryEvent struct {
		attempt int
		delay   time.Duration
	}

	var events []retryEvent
	calls := 0
	err := DoWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("transient")
	}, func(attempt int, err error, nextDelay time.Duration) {
		events = append(events, retryEvent{attempt: attempt, delay: nextDelay})
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// The final attempt is not followed by a retry, so two callbacks.
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].attempt)
	assert.Equal(t, 2, events[1].attempt)
	assert.Greater(t, events[1].delay, events[0].delay)
}

func TestNextDelay(t *testing.T) {
	policy := Policy{
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}

	assert.Equal(t, time.Second, nextDelay(1, policy))
	assert.Equal(t, 2*time.Second, nextDelay(2, policy))
	assert.Equal(t, 4*time.Second, nextDelay(3, policy))
	assert.Equal(t, 10*time.Second, nextDelay(10, policy), "capped at max interval")
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.InitialInterval)
	assert.Equal(t, 2.0, policy.Multiplier)
}
