package health

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (c *stubChecker) Name() string                    { return c.name }
func (c *stubChecker) Check(ctx context.Context) error { return c.err }

func TestCheckerRegistry_AllHealthy(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(&stubChecker{name: "a"})
	registry.Register(&stubChecker{name: "b"})

	h := registry.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	require.Len(t, h.Checks, 2)
	assert.Equal(t, StatusHealthy, h.Checks["a"].Status)
	assert.Equal(t, StatusHealthy, h.Checks["b"].Status)
}

func TestCheckerRegistry_OneUnhealthy(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(&stubChecker{name: "a"})
	registry.Register(&stubChecker{name: "b", err: errors.New("connection refused")})

	h := registry.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusHealthy, h.Checks["a"].Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["b"].Status)
	assert.Contains(t, h.Checks["b"].Message, "connection refused")
}

func TestCheckerRegistry_Empty(t *testing.T) {
	registry := NewCheckerRegistry()
	h := registry.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Empty(t, h.Checks)
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	mr.Close()
	assert.Error(t, checker.Check(context.Background()))
}

func TestSubscriptionChecker(t *testing.T) {
	running := true
	checker := NewSubscriptionChecker("orders", func() bool { return running })

	assert.Equal(t, "subscription:orders", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	running = false
	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
