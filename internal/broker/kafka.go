package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/retry"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, message any, correlationID string) error {
	body, contentType, err := encodeBody(message)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: constants.HeaderCorrelationID, Value: []byte(correlationID)},
	}
	if contentType != "" {
		headers = append(headers, kafka.Header{
			Key: constants.HeaderContentType, Value: []byte(contentType),
		})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(correlationID),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer fetches deliveries, feeds them through the consume func
// with the configured retry policy, and commits offsets once a delivery
// reaches a terminal outcome. Terminal failures go to the DLQ topic when
// one is configured.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	dlqProducer Producer
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:    cfg,
		logger: log,
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, consume ConsumeFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: constants.KafkaMinBytes,
		MaxBytes: constants.KafkaMaxBytes,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.InfowCtx(ctx, "Started consuming", "topic", topic)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(ctx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				metrics.BrokerConsumeErrorsTotal.WithLabelValues(constants.BrokerTypeKafka, topic).Inc()
				c.logger.ErrorwCtx(ctx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			raw := rawFromKafka(topic, m)
			msgCtx := logging.WithMessageID(ctx, raw.ID)
			if raw.CorrelationID != "" {
				msgCtx = logging.WithCorrelationID(msgCtx, raw.CorrelationID)
			}

			if err := c.dispatchWithRetry(msgCtx, raw, consume, topic); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Delivery reached terminal failure",
					"error", err,
					"topic", topic,
				)
				c.deadLetter(msgCtx, raw, err, topic)
			}

			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
					"error", err,
					"topic", topic,
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) dispatchWithRetry(ctx context.Context, raw *models.RawMessage, consume ConsumeFunc, topic string) error {
	policy := retryPolicy(c.cfg.Retry)

	return retry.DoWithCallback(ctx, policy, func() error {
		_, err := consume(ctx, raw)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.BrokerRedeliveriesTotal.WithLabelValues(constants.BrokerTypeKafka, topic).Inc()
		c.logger.WarnwCtx(ctx, "Redelivering message",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) deadLetter(ctx context.Context, raw *models.RawMessage, cause error, sourceTopic string) {
	if c.dlqProducer == nil || c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(ctx, "No DLQ configured, dropping message",
			"topic", sourceTopic,
		)
		return
	}

	envelope := map[string]any{
		"id":           raw.ID,
		"source_topic": sourceTopic,
		"headers":      raw.Headers,
		"body":         raw.Body,
		"reason":       cause.Error(),
		"failed_at":    time.Now().UTC(),
	}

	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, envelope, raw.CorrelationID); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to publish to DLQ",
			"error", err,
			"dlq_topic", c.cfg.DLQTopic,
		)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(constants.BrokerTypeKafka, sourceTopic, "terminal_failure").Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
	)
}

func rawFromKafka(topic string, m kafka.Message) *models.RawMessage {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &models.RawMessage{
		ID:            fmt.Sprintf("%s-%d-%d", topic, m.Partition, m.Offset),
		Topic:         topic,
		Body:          m.Value,
		Headers:       headers,
		CorrelationID: headers[constants.HeaderCorrelationID],
		Timestamp:     m.Time,
	}
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}
