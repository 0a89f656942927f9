package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCounter(t *testing.T, maxTries int, opts ...RedisCounterOption) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCounter(client, maxTries, opts...), mr
}

func TestRedisCounter_RetriesUntilMaxTries(t *testing.T) {
	w, _ := setupRedisCounter(t, 3)
	ctx := context.Background()

	failure := Outcome{Kind: OutcomeFailure, Err: errors.New("attempt failed")}

	assert.Equal(t, DecisionRetry, w.Decide(ctx, "m1", failure))
	assert.Equal(t, DecisionRetry, w.Decide(ctx, "m1", failure))
	assert.Equal(t, 2, w.Attempts(ctx, "m1"))

	assert.Equal(t, DecisionReject, w.Decide(ctx, "m1", failure))
	assert.Equal(t, 0, w.Attempts(ctx, "m1"), "reject prunes the key")
}

func TestRedisCounter_SuccessDeletesKey(t *testing.T) {
	w, mr := setupRedisCounter(t, 3)
	ctx := context.Background()

	w.Decide(ctx, "m1", Outcome{Kind: OutcomeFailure, Err: errors.New("attempt failed")})
	require.True(t, mr.Exists("watch:attempts:m1"))

	assert.Equal(t, DecisionAck, w.Decide(ctx, "m1", Outcome{Kind: OutcomeSuccess}))
	assert.False(t, mr.Exists("watch:attempts:m1"))
}

func TestRedisCounter_KeyPrefixOption(t *testing.T) {
	w, mr := setupRedisCounter(t, 3, WithKeyPrefix("relay:tries:"))
	ctx := context.Background()

	w.Decide(ctx, "m1", Outcome{Kind: OutcomeFailure, Err: errors.New("attempt failed")})
	assert.True(t, mr.Exists("relay:tries:m1"))
}

func TestRedisCounter_TTLBoundsAbandonedIdentities(t *testing.T) {
	w, mr := setupRedisCounter(t, 5, WithTTL(time.Minute))
	ctx := context.Background()

	w.Decide(ctx, "m1", Outcome{Kind: OutcomeFailure, Err: errors.New("attempt failed")})
	assert.Equal(t, 1, w.Attempts(ctx, "m1"))

	// An identity that never reaches a terminal outcome expires on its own.
	mr.FastForward(2 * time.Minute)
	assert.Equal(t, 0, w.Attempts(ctx, "m1"))
}

func TestRedisCounter_RedisFailureFallsBackToRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w := NewRedisCounter(client, 2)
	mr.Close()

	decision := w.Decide(context.Background(), "m1", Outcome{Kind: OutcomeFailure, Err: errors.New("attempt failed")})
	assert.Equal(t, DecisionRetry, decision, "a flaky backend must not terminate deliveries")
}

func TestRedisCounter_SharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	first := NewRedisCounter(client, 2)
	second := NewRedisCounter(client, 2)
	ctx := context.Background()

	failure := Outcome{Kind: OutcomeFailure, Err: errors.New("attempt failed")}

	assert.Equal(t, DecisionRetry, first.Decide(ctx, "m1", failure))
	assert.Equal(t, DecisionReject, second.Decide(ctx, "m1", failure),
		"attempt counts are shared through the backend")
}
