package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/logger"
	"relay/pkg/models"
)

func testRaw() *models.RawMessage {
	return &models.RawMessage{ID: "m1", Topic: "orders"}
}

func TestLogging_PassesBodyThrough(t *testing.T) {
	factory := Logging(logger.NopLogger())
	ctx := context.Background()

	scope, err := factory(ctx, testRaw())
	require.NoError(t, err)

	body, err := scope.BeginConsume(ctx, map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, body)
	scope.EndConsume(ctx, nil)
	scope.EndConsume(ctx, errors.New("handler failed"))

	message, err := scope.BeginPublish(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, "out", message)
	scope.EndPublish(ctx, nil)

	assert.NoError(t, scope.Close(ctx, nil))
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	factory := RateLimit(RateLimitConfig{Subscription: "orders", RPS: 100, Burst: 10})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		scope, err := factory(ctx, testRaw())
		require.NoError(t, err)

		body, err := scope.BeginConsume(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, i, body)
	}
}

func TestRateLimit_SharedAcrossScopes(t *testing.T) {
	// One token per second, burst of one: the second scope must wait.
	factory := RateLimit(RateLimitConfig{Subscription: "orders", RPS: 1, Burst: 1})
	ctx := context.Background()

	first, err := factory(ctx, testRaw())
	require.NoError(t, err)
	_, err = first.BeginConsume(ctx, nil)
	require.NoError(t, err)

	second, err := factory(ctx, testRaw())
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = second.BeginConsume(waitCtx, nil)
	require.Error(t, err, "second delivery exceeds the shared budget")
}

func TestRateLimit_WaitsForToken(t *testing.T) {
	factory := RateLimit(RateLimitConfig{Subscription: "orders", RPS: 50, Burst: 1})
	ctx := context.Background()

	first, err := factory(ctx, testRaw())
	require.NoError(t, err)
	_, err = first.BeginConsume(ctx, nil)
	require.NoError(t, err)

	second, err := factory(ctx, testRaw())
	require.NoError(t, err)

	start := time.Now()
	_, err = second.BeginConsume(ctx, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond,
		"delivery is delayed, not dropped")
}

func TestTracing_ScopeLifecycle(t *testing.T) {
	factory := Tracing("orders")
	ctx := context.Background()

	raw := testRaw()
	raw.Headers = map[string]string{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}

	scope, err := factory(ctx, raw)
	require.NoError(t, err)

	message, err := scope.BeginPublish(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, "out", message)
	scope.EndPublish(ctx, nil)

	assert.NoError(t, scope.Close(ctx, nil))

	scope, err = factory(ctx, testRaw())
	require.NoError(t, err)
	assert.NoError(t, scope.Close(ctx, errors.New("dispatch failed")))
}

func TestRateLimit_Defaults(t *testing.T) {
	factory := RateLimit(RateLimitConfig{Subscription: "orders"})
	ctx := context.Background()

	scope, err := factory(ctx, testRaw())
	require.NoError(t, err)

	_, err = scope.BeginConsume(ctx, nil)
	require.NoError(t, err)
}
