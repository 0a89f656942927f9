package dispatch

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"relay/internal/constants"
	"relay/pkg/models"
)

// ParserFunc builds a fresh Envelope from one raw delivery. Every handler
// item owns its own parser, so parsing is never shared across items.
type ParserFunc func(ctx context.Context, raw *models.RawMessage) (*models.Envelope, error)

// DecoderFunc produces the decoded body stored on the envelope before
// filtering and invocation.
type DecoderFunc func(ctx context.Context, env *models.Envelope) (any, error)

// FilterFunc decides whether a handler item accepts the decoded envelope.
// Filters may perform I/O; they run sequentially in registration order.
type FilterFunc func(ctx context.Context, env *models.Envelope) (bool, error)

// HandlerFunc is the user callable. A nil Result with a nil error still
// consumes the delivery; it just publishes nothing.
type HandlerFunc func(ctx context.Context, env *models.Envelope) (*Result, error)

// Result is what a handler hands back to the dispatcher.
//
// Stop asks the subscription to stop accepting further deliveries. It is a
// tagged signal, not an error: the dispatcher records a stopped outcome,
// publishes nothing, and the caller of Consume sees no failure.
type Result struct {
	Value    any
	Response Publisher
	Stop     bool
}

// Publisher sends one outgoing value produced by a handler. Implementations
// live at the transport layer; the dispatcher only awaits completion.
type Publisher interface {
	Publish(ctx context.Context, message any, correlationID string) error
}

// LogContextBuilder derives the key/value pairs attached to the logging
// context for the duration of one dispatch call. It runs exactly once per
// call, against the first item's parsed envelope.
type LogContextBuilder func(env *models.Envelope) map[string]string

// DefaultParser copies headers onto the envelope, resolves well-known header
// fields, and generates missing message/correlation ids.
func DefaultParser(ctx context.Context, raw *models.RawMessage) (*models.Envelope, error) {
	headers := make(map[string]string, len(raw.Headers))
	for k, v := range raw.Headers {
		headers[k] = v
	}

	messageID := raw.ID
	if messageID == "" {
		messageID = headers[constants.HeaderMessageID]
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	correlationID := raw.CorrelationID
	if correlationID == "" {
		correlationID = headers[constants.HeaderCorrelationID]
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return &models.Envelope{
		Raw:           raw,
		MessageID:     messageID,
		Headers:       headers,
		ContentType:   headers[constants.HeaderContentType],
		ReplyTo:       headers[constants.HeaderReplyTo],
		CorrelationID: correlationID,
	}, nil
}

// DefaultDecoder unmarshals JSON bodies and falls back to the raw bytes for
// everything else.
func DefaultDecoder(ctx context.Context, env *models.Envelope) (any, error) {
	body := env.Raw.Body
	if len(body) == 0 {
		return nil, nil
	}

	if env.ContentType == "" || env.ContentType == constants.ContentTypeJSON {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err == nil {
			return decoded, nil
		}
	}

	return body, nil
}

// DefaultFilter accepts a delivery only while no earlier item has consumed
// it, which makes a default-registered handler act as the catch-all.
func DefaultFilter(ctx context.Context, env *models.Envelope) (bool, error) {
	return !env.Processed, nil
}

// DefaultLogContext tags log lines with the ids every envelope carries.
func DefaultLogContext(env *models.Envelope) map[string]string {
	return map[string]string{
		"message_id":     env.MessageID,
		"correlation_id": env.CorrelationID,
	}
}
