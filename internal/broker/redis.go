package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
)

// redisFrame is the wire envelope on Redis channels; pub/sub carries no
// headers of its own, so ids and headers ride inside the payload.
type redisFrame struct {
	ID            string            `json:"id"`
	Headers       map[string]string `json:"headers,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Body          []byte            `json:"body"`
	Timestamp     time.Time         `json:"timestamp"`
}

type RedisProducer struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisProducer(cfg config.RedisConfig, log logger.Logger) *RedisProducer {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisProducer{client: client, logger: log}
}

func (p *RedisProducer) Publish(ctx context.Context, topic string, message any, correlationID string) error {
	body, contentType, err := encodeBody(message)
	if err != nil {
		return err
	}

	frame := redisFrame{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Body:          body,
		Timestamp:     time.Now().UTC(),
	}
	if contentType != "" {
		frame.Headers = map[string]string{constants.HeaderContentType: contentType}
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode redis frame: %w", err)
	}

	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis channel %s: %w", topic, err)
	}
	return nil
}

func (p *RedisProducer) Close() error {
	return p.client.Close()
}

// RedisConsumer subscribes to a pub/sub channel. Redis pub/sub is fire and
// forget, so there is no redelivery: a failed dispatch is logged and the
// message is gone. Retry-sensitive deployments should prefer Kafka.
type RedisConsumer struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger logger.Logger
}

func NewRedisConsumer(cfg config.RedisConfig, log logger.Logger) *RedisConsumer {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisConsumer{client: client, logger: log}
}

func (c *RedisConsumer) Consume(ctx context.Context, topic string, consume ConsumeFunc) error {
	c.pubsub = c.client.Subscribe(ctx, topic)

	if _, err := c.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis channel %s: %w", topic, err)
	}

	c.logger.InfowCtx(ctx, "Started consuming", "channel", topic)
	ch := c.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			raw, err := rawFromRedis(topic, m)
			if err != nil {
				metrics.BrokerConsumeErrorsTotal.WithLabelValues(constants.BrokerTypeRedis, topic).Inc()
				c.logger.ErrorwCtx(ctx, "Failed to decode redis frame",
					"error", err,
					"channel", topic,
				)
				continue
			}

			msgCtx := logging.WithMessageID(ctx, raw.ID)
			if raw.CorrelationID != "" {
				msgCtx = logging.WithCorrelationID(msgCtx, raw.CorrelationID)
			}

			if _, err := consume(msgCtx, raw); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Dispatch failed, message dropped",
					"error", err,
					"channel", topic,
				)
			}
		}
	}
}

func (c *RedisConsumer) Close() error {
	var err error
	if c.pubsub != nil {
		err = c.pubsub.Close()
	}
	if cerr := c.client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func rawFromRedis(topic string, m *redis.Message) (*models.RawMessage, error) {
	var frame redisFrame
	if err := json.Unmarshal([]byte(m.Payload), &frame); err != nil {
		return nil, err
	}

	id := frame.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &models.RawMessage{
		ID:            id,
		Topic:         topic,
		Body:          frame.Body,
		Headers:       frame.Headers,
		CorrelationID: frame.CorrelationID,
		Timestamp:     frame.Timestamp,
	}, nil
}
