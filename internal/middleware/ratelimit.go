package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"relay/internal/dispatch"
	"relay/pkg/metrics"
	"relay/pkg/models"
)

type RateLimitConfig struct {
	Subscription string
	RPS          float64
	Burst        int
}

// RateLimit creates a middleware factory that throttles handler invocations
// across all concurrent dispatch calls of one subscription. Deliveries are
// delayed, not dropped: BeginConsume blocks on the shared limiter until a
// token is available or the context ends.
func RateLimit(cfg RateLimitConfig) dispatch.MiddlewareFactory {
	if cfg.RPS <= 0 {
		cfg.RPS = 10.0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RPS)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

	return func(ctx context.Context, raw *models.RawMessage) (dispatch.Middleware, error) {
		return &rateLimitScope{limiter: limiter, subscription: cfg.Subscription}, nil
	}
}

type rateLimitScope struct {
	dispatch.Base

	limiter      *rate.Limiter
	subscription string
}

func (s *rateLimitScope) BeginConsume(ctx context.Context, body any) (any, error) {
	if !s.limiter.Allow() {
		metrics.RateLimitedTotal.WithLabelValues(s.subscription).Inc()
		if err := s.limiter.Wait(ctx); err != nil {
			return body, err
		}
	}
	return body, nil
}
