package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/retry"
)

// NATSProducer publishes over core NATS with headers for id propagation.
type NATSProducer struct {
	conn   *nats.Conn
	logger logger.Logger
}

func NewNATSProducer(cfg config.NATSConfig, log logger.Logger) (*NATSProducer, error) {
	conn, err := connectNATS(cfg, log)
	if err != nil {
		return nil, err
	}
	return &NATSProducer{conn: conn, logger: log}, nil
}

func (p *NATSProducer) Publish(ctx context.Context, topic string, message any, correlationID string) error {
	body, contentType, err := encodeBody(message)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(topic)
	msg.Data = body
	msg.Header.Set(constants.HeaderCorrelationID, correlationID)
	msg.Header.Set(constants.HeaderMessageID, uuid.NewString())
	if contentType != "" {
		msg.Header.Set(constants.HeaderContentType, contentType)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish nats message: %w", err)
	}
	return nil
}

func (p *NATSProducer) Close() error {
	p.conn.Close()
	return nil
}

// NATSConsumer subscribes on a queue group so multiple instances share the
// subject, and delivers each message through the consume func with the
// configured retry policy.
type NATSConsumer struct {
	cfg    config.NATSConfig
	conn   *nats.Conn
	sub    *nats.Subscription
	logger logger.Logger
}

func NewNATSConsumer(cfg config.NATSConfig, log logger.Logger) (*NATSConsumer, error) {
	conn, err := connectNATS(cfg, log)
	if err != nil {
		return nil, err
	}
	return &NATSConsumer{cfg: cfg, conn: conn, logger: log}, nil
}

func (c *NATSConsumer) Consume(ctx context.Context, topic string, consume ConsumeFunc) error {
	msgs := make(chan *nats.Msg, 64)

	var (
		sub *nats.Subscription
		err error
	)
	if c.cfg.QueueGroup != "" {
		sub, err = c.conn.ChanQueueSubscribe(topic, c.cfg.QueueGroup, msgs)
	} else {
		sub, err = c.conn.ChanSubscribe(topic, msgs)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	c.sub = sub

	c.logger.InfowCtx(ctx, "Started consuming",
		"subject", topic,
		"queue_group", c.cfg.QueueGroup,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return nil
			}

			raw := rawFromNATS(topic, m)
			msgCtx := logging.WithMessageID(ctx, raw.ID)
			if raw.CorrelationID != "" {
				msgCtx = logging.WithCorrelationID(msgCtx, raw.CorrelationID)
			}

			if err := c.dispatchWithRetry(msgCtx, raw, consume, topic); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Delivery reached terminal failure",
					"error", err,
					"subject", topic,
				)
			}
		}
	}
}

func (c *NATSConsumer) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.conn.Close()
			return err
		}
	}
	c.conn.Close()
	return nil
}

func (c *NATSConsumer) dispatchWithRetry(ctx context.Context, raw *models.RawMessage, consume ConsumeFunc, topic string) error {
	policy := retryPolicy(c.cfg.Retry)

	return retry.DoWithCallback(ctx, policy, func() error {
		_, err := consume(ctx, raw)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.BrokerRedeliveriesTotal.WithLabelValues(constants.BrokerTypeNATS, topic).Inc()
		c.logger.WarnwCtx(ctx, "Redelivering message",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"subject", topic,
		)
	})
}

func connectNATS(cfg config.NATSConfig, log logger.Logger) (*nats.Conn, error) {
	name := cfg.Name
	if name == "" {
		name = "relay"
	}

	conn, err := nats.Connect(joinURLs(cfg.URLs),
		nats.Name(name),
		nats.Timeout(constants.NATSConnectTimeout),
		nats.ReconnectWait(constants.NATSReconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warnw("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Infow("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return nats.DefaultURL
	}
	joined := urls[0]
	for _, u := range urls[1:] {
		joined += "," + u
	}
	return joined
}

func rawFromNATS(topic string, m *nats.Msg) *models.RawMessage {
	headers := make(map[string]string)
	for key, values := range m.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	id := headers[constants.HeaderMessageID]
	if id == "" {
		id = uuid.NewString()
	}

	return &models.RawMessage{
		ID:            id,
		Topic:         topic,
		Body:          m.Data,
		Headers:       headers,
		CorrelationID: headers[constants.HeaderCorrelationID],
		Timestamp:     time.Now(),
	}
}
