package models

import "time"

// RawMessage is the normalized view of one broker delivery before any
// handler-specific parsing. Transports construct it; the dispatch core never
// mutates it.
type RawMessage struct {
	ID            string            `json:"id"`
	Topic         string            `json:"topic"`
	Body          []byte            `json:"body"`
	Headers       map[string]string `json:"headers"`
	CorrelationID string            `json:"correlation_id"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Header returns the named header or "" when missing.
func (m *RawMessage) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Envelope is the per-handler parsed view of one raw message. Each handler
// item builds its own Envelope with its own parser, so two items on the same
// subscription may see differently shaped envelopes for the same delivery.
//
// DecodedBody is set once per handler attempt by the item's decoder.
// Processed becomes true the moment some handler item consumes the delivery;
// items evaluated later in the same dispatch call observe the updated value.
type Envelope struct {
	Raw           *RawMessage
	MessageID     string
	Headers       map[string]string
	ContentType   string
	ReplyTo       string
	CorrelationID string
	DecodedBody   any
	Processed     bool
}

// Header returns the named envelope header or "" when missing.
func (e *Envelope) Header(key string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[key]
}
