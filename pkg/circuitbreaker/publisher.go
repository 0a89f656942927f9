// Package circuitbreaker protects response publishers from a failing broker.
package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"relay/pkg/metrics"
)

type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(counts gobreaker.Counts) bool
}

func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.5
		},
	}
}

// publisher is the dispatch-side publishing contract. Declared locally so
// the package stays decoupled from the dispatch core.
type publisher interface {
	Publish(ctx context.Context, message any, correlationID string) error
}

// Publisher decorates another publisher with circuit-breaker protection.
// When the breaker is open, publishes fail fast with gobreaker's open-state
// error and never reach the broker.
type Publisher struct {
	next publisher
	cb   *gobreaker.CircuitBreaker
}

func NewPublisher(next publisher, cfg Config) *Publisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			updateStateMetric(name, to)
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	updateStateMetric(cfg.Name, cb.State())

	return &Publisher{next: next, cb: cb}
}

func (p *Publisher) Publish(ctx context.Context, message any, correlationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.next.Publish(ctx, message, correlationID)
	})
	return err
}

func (p *Publisher) State() gobreaker.State {
	return p.cb.State()
}

func updateStateMetric(name string, state gobreaker.State) {
	var value float64
	switch state {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(value)
}
