package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"relay/internal/constants"
)

// TopicPublisher binds a producer to one topic, satisfying the dispatch
// Publisher contract so it can be statically attached to handler items.
type TopicPublisher struct {
	producer Producer
	topic    string
}

func NewTopicPublisher(producer Producer, topic string) *TopicPublisher {
	return &TopicPublisher{producer: producer, topic: topic}
}

func (p *TopicPublisher) Topic() string { return p.topic }

func (p *TopicPublisher) Publish(ctx context.Context, message any, correlationID string) error {
	return p.producer.Publish(ctx, p.topic, message, correlationID)
}

// encodeBody normalizes an outgoing value to bytes plus its content type.
func encodeBody(message any) ([]byte, string, error) {
	switch v := message.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), constants.ContentTypeText, nil
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode message body: %w", err)
		}
		return body, constants.ContentTypeJSON, nil
	}
}
