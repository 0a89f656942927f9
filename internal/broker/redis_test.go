package broker

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/models"
)

func miniredisConfig(t *testing.T) (config.RedisConfig, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return config.RedisConfig{
		Host:          host,
		Port:          port,
		InputChannel:  "relay.in",
		OutputChannel: "relay.out",
	}, mr
}

func TestRedisRoundTrip(t *testing.T) {
	cfg, _ := miniredisConfig(t)
	log := logger.NopLogger()

	producer := NewRedisProducer(cfg, log)
	t.Cleanup(func() { producer.Close() })

	consumer := NewRedisConsumer(cfg, log)
	t.Cleanup(func() { consumer.Close() })

	received := make(chan *models.RawMessage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- consumer.Consume(ctx, cfg.InputChannel, func(ctx context.Context, raw *models.RawMessage) (any, error) {
			received <- raw
			return nil, nil
		})
	}()

	// Give the subscription a moment to establish before publishing.
	require.Eventually(t, func() bool {
		err := producer.Publish(context.Background(), cfg.InputChannel,
			map[string]any{"type": "created"}, "corr-1")
		if err != nil {
			return false
		}
		select {
		case raw := <-received:
			received <- raw
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)

	raw := <-received
	assert.Equal(t, cfg.InputChannel, raw.Topic)
	assert.Equal(t, "corr-1", raw.CorrelationID)
	assert.NotEmpty(t, raw.ID)
	assert.JSONEq(t, `{"type":"created"}`, string(raw.Body))
	assert.Equal(t, constants.ContentTypeJSON, raw.Headers[constants.HeaderContentType])

	cancel()
	assert.ErrorIs(t, <-consumeDone, context.Canceled)
}

func TestRawFromRedis_InvalidFrame(t *testing.T) {
	_, err := rawFromRedis("relay.in", &redis.Message{Payload: "not-json"})
	require.Error(t, err)
}

func TestRawFromRedis_GeneratesMissingID(t *testing.T) {
	raw, err := rawFromRedis("relay.in", &redis.Message{Payload: `{"body":"aGk="}`})
	require.NoError(t, err)
	assert.NotEmpty(t, raw.ID)
	assert.Equal(t, []byte("hi"), raw.Body)
}
