package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	calls int
	err   error
}

func (p *stubPublisher) Publish(ctx context.Context, message any, correlationID string) error {
	p.calls++
	return p.err
}

func trippingConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

func TestPublisher_PassesThroughOnSuccess(t *testing.T) {
	next := &stubPublisher{}
	pub := NewPublisher(next, DefaultConfig("test-pass"))

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Publish(context.Background(), "msg", "c1"))
	}
	assert.Equal(t, 5, next.calls)
	assert.Equal(t, gobreaker.StateClosed, pub.State())
}

func TestPublisher_PropagatesPublishError(t *testing.T) {
	next := &stubPublisher{err: errors.New("broker down")}
	pub := NewPublisher(next, trippingConfig("test-err"))

	err := pub.Publish(context.Background(), "msg", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubPublisher{err: errors.New("broker down")}
	pub := NewPublisher(next, trippingConfig("test-open"))

	for i := 0; i < 3; i++ {
		require.Error(t, pub.Publish(context.Background(), "msg", "c1"))
	}
	assert.Equal(t, gobreaker.StateOpen, pub.State())
	assert.Equal(t, 3, next.calls)

	// Open breaker fails fast without touching the broker.
	err := pub.Publish(context.Background(), "msg", "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestPublisher_CancelledContextFailsFast(t *testing.T) {
	next := &stubPublisher{}
	pub := NewPublisher(next, DefaultConfig("test-ctx"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Publish(ctx, "msg", "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, next.calls)
}
