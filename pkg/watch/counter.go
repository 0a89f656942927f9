package watch

import (
	"context"
	"sync"

	"relay/pkg/metrics"
)

// Counter retries failures up to maxTries attempts per message identity.
// The attempt table is pruned on every terminal outcome, so it only grows
// with identities that are mid-retry.
type Counter struct {
	maxTries int

	mu       sync.Mutex
	attempts map[string]int
}

func NewCounter(maxTries int) *Counter {
	if maxTries < 1 {
		maxTries = 1
	}
	return &Counter{
		maxTries: maxTries,
		attempts: make(map[string]int),
	}
}

func (c *Counter) Decide(ctx context.Context, id string, outcome Outcome) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome.Kind != OutcomeFailure {
		delete(c.attempts, id)
		metrics.WatcherTrackedMessages.Set(float64(len(c.attempts)))
		return DecisionAck
	}

	c.attempts[id]++
	if c.attempts[id] < c.maxTries {
		metrics.WatcherTrackedMessages.Set(float64(len(c.attempts)))
		return DecisionRetry
	}

	delete(c.attempts, id)
	metrics.WatcherTrackedMessages.Set(float64(len(c.attempts)))
	return DecisionReject
}

// Attempts reports the recorded attempt count for a message identity.
func (c *Counter) Attempts(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[id]
}

// Tracked reports how many identities are currently mid-retry.
func (c *Counter) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attempts)
}
