package watch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = time.Hour

// RedisCounter is the Counter policy backed by Redis, for consumer groups
// where retries of the same delivery may land on different instances. Keys
// expire after TTL, which bounds table growth even when a terminal outcome
// is never observed.
type RedisCounter struct {
	client   redis.UniversalClient
	maxTries int
	prefix   string
	ttl      time.Duration
}

type RedisCounterOption func(*RedisCounter)

func WithKeyPrefix(prefix string) RedisCounterOption {
	return func(c *RedisCounter) { c.prefix = prefix }
}

func WithTTL(ttl time.Duration) RedisCounterOption {
	return func(c *RedisCounter) { c.ttl = ttl }
}

func NewRedisCounter(client redis.UniversalClient, maxTries int, opts ...RedisCounterOption) *RedisCounter {
	if maxTries < 1 {
		maxTries = 1
	}
	c := &RedisCounter{
		client:   client,
		maxTries: maxTries,
		prefix:   "watch:attempts:",
		ttl:      defaultRedisTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decide never surfaces Redis errors: a failed increment falls back to a
// retry decision so a flaky Redis cannot terminate deliveries early.
func (c *RedisCounter) Decide(ctx context.Context, id string, outcome Outcome) Decision {
	key := c.prefix + id

	if outcome.Kind != OutcomeFailure {
		c.client.Del(ctx, key)
		return DecisionAck
	}

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return DecisionRetry
	}
	c.client.Expire(ctx, key, c.ttl)

	if int(count) < c.maxTries {
		return DecisionRetry
	}

	c.client.Del(ctx, key)
	return DecisionReject
}

// Attempts reads the recorded attempt count, zero when unknown.
func (c *RedisCounter) Attempts(ctx context.Context, id string) int {
	count, err := c.client.Get(ctx, c.prefix+id).Int()
	if err != nil {
		return 0
	}
	return count
}
