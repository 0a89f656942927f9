package dispatch

import (
	"context"

	"relay/pkg/models"
)

// Middleware is one per-message scope created from a factory at the start of
// a dispatch call and torn down before the call returns.
//
// BeginConsume/EndConsume bracket one handler invocation and may transform
// the decoded body. BeginPublish/EndPublish bracket one publish call and may
// transform the outgoing value. Close always runs, on every exit path, with
// the error the dispatch call is about to return (nil on success).
type Middleware interface {
	BeginConsume(ctx context.Context, body any) (any, error)
	EndConsume(ctx context.Context, err error)
	BeginPublish(ctx context.Context, message any) (any, error)
	EndPublish(ctx context.Context, err error)
	Close(ctx context.Context, err error) error
}

// MiddlewareFactory creates one Middleware scoped to one raw message.
type MiddlewareFactory func(ctx context.Context, raw *models.RawMessage) (Middleware, error)

// Base is a no-op Middleware for embedding; override only the hooks you need.
type Base struct{}

func (Base) BeginConsume(ctx context.Context, body any) (any, error) { return body, nil }

func (Base) EndConsume(ctx context.Context, err error) {}

func (Base) BeginPublish(ctx context.Context, message any) (any, error) { return message, nil }

func (Base) EndPublish(ctx context.Context, err error) {}

func (Base) Close(ctx context.Context, err error) error { return nil }

// beginConsume threads the decoded body through the chain in order and
// returns the transformed body with the count of scopes entered, so the
// caller can unwind exactly those on any exit path.
func beginConsume(ctx context.Context, chain []Middleware, body any) (any, int, error) {
	entered := 0
	for _, m := range chain {
		next, err := m.BeginConsume(ctx, body)
		if err != nil {
			return body, entered, err
		}
		body = next
		entered++
	}
	return body, entered, nil
}

func endConsume(ctx context.Context, chain []Middleware, entered int, err error) {
	for i := entered - 1; i >= 0; i-- {
		chain[i].EndConsume(ctx, err)
	}
}

func beginPublish(ctx context.Context, chain []Middleware, message any) (any, int, error) {
	entered := 0
	for _, m := range chain {
		next, err := m.BeginPublish(ctx, message)
		if err != nil {
			return message, entered, err
		}
		message = next
		entered++
	}
	return message, entered, nil
}

func endPublish(ctx context.Context, chain []Middleware, entered int, err error) {
	for i := entered - 1; i >= 0; i-- {
		chain[i].EndPublish(ctx, err)
	}
}
