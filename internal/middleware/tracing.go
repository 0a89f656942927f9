package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"relay/internal/dispatch"
	"relay/pkg/models"
	"relay/pkg/tracing"
)

// Tracing creates a middleware factory that opens one span per delivery,
// resuming the trace context carried in the message headers. The span ends
// when the dispatch scope closes and records the final error, if any.
func Tracing(subscription string) dispatch.MiddlewareFactory {
	tracer := tracing.GetTracer("relay/dispatch")
	return func(ctx context.Context, raw *models.RawMessage) (dispatch.Middleware, error) {
		spanCtx := tracing.Extract(ctx, raw.Headers)
		_, span := tracer.Start(spanCtx, "dispatch.consume",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination.name", raw.Topic),
				attribute.String("messaging.message.id", raw.ID),
				attribute.String("relay.subscription", subscription),
			),
		)
		return &tracingScope{span: span}, nil
	}
}

type tracingScope struct {
	dispatch.Base

	span trace.Span
}

func (s *tracingScope) BeginPublish(ctx context.Context, message any) (any, error) {
	s.span.AddEvent("publish.start")
	return message, nil
}

func (s *tracingScope) EndPublish(ctx context.Context, err error) {
	if err != nil {
		s.span.AddEvent("publish.error")
		return
	}
	s.span.AddEvent("publish.end")
}

func (s *tracingScope) Close(ctx context.Context, err error) error {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	return nil
}
