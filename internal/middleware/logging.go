// Package middleware ships the built-in dispatch middlewares.
package middleware

import (
	"context"
	"time"

	"relay/internal/dispatch"
	"relay/internal/logger"
	"relay/pkg/models"
)

// Logging creates a middleware factory that logs the lifetime of each
// handler invocation and publish at debug level, and failures at error
// level.
func Logging(log logger.Logger) dispatch.MiddlewareFactory {
	return func(ctx context.Context, raw *models.RawMessage) (dispatch.Middleware, error) {
		return &loggingScope{log: log, topic: raw.Topic}, nil
	}
}

type loggingScope struct {
	dispatch.Base

	log   logger.Logger
	topic string

	consumeStart time.Time
	publishStart time.Time
}

func (s *loggingScope) BeginConsume(ctx context.Context, body any) (any, error) {
	s.consumeStart = time.Now()
	s.log.DebugwCtx(ctx, "Handler invocation started", "topic", s.topic)
	return body, nil
}

func (s *loggingScope) EndConsume(ctx context.Context, err error) {
	elapsed := time.Since(s.consumeStart)
	if err != nil {
		s.log.ErrorwCtx(ctx, "Handler invocation failed",
			"topic", s.topic,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	s.log.DebugwCtx(ctx, "Handler invocation finished",
		"topic", s.topic,
		"elapsed", elapsed,
	)
}

func (s *loggingScope) BeginPublish(ctx context.Context, message any) (any, error) {
	s.publishStart = time.Now()
	return message, nil
}

func (s *loggingScope) EndPublish(ctx context.Context, err error) {
	if err != nil {
		s.log.ErrorwCtx(ctx, "Response publish failed",
			"topic", s.topic,
			"elapsed", time.Since(s.publishStart),
			"error", err,
		)
		return
	}
	s.log.DebugwCtx(ctx, "Response published",
		"topic", s.topic,
		"elapsed", time.Since(s.publishStart),
	)
}
