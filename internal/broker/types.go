package broker

import (
	"context"

	"relay/pkg/models"
)

// ConsumeFunc is the dispatch entry point a transport feeds deliveries into;
// in practice it is Dispatcher.Consume.
type ConsumeFunc func(ctx context.Context, raw *models.RawMessage) (any, error)

// Producer publishes one message to a topic. Message values of []byte and
// string pass through unchanged; everything else is JSON-encoded.
type Producer interface {
	Publish(ctx context.Context, topic string, message any, correlationID string) error
	Close() error
}

// Consumer delivers raw messages one at a time into the consume func and
// translates the propagated error, via the retry policy and DLQ rules, into
// an acknowledgment action. Consume blocks until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, topic string, consume ConsumeFunc) error
	Close() error
}
