package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/config"
	"relay/internal/logger"
)

func TestNewProducer_UnknownType(t *testing.T) {
	_, err := NewProducer(config.BrokerConfig{Type: "rabbitmq"}, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown broker type")
}

func TestNewConsumer_UnknownType(t *testing.T) {
	_, err := NewConsumer(config.BrokerConfig{Type: ""}, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown broker type")
}

func TestInputTopic(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.BrokerConfig
		want string
	}{
		{
			name: "kafka",
			cfg: config.BrokerConfig{
				Type:  "kafka",
				Kafka: config.KafkaConfig{InputTopic: "orders"},
			},
			want: "orders",
		},
		{
			name: "nats",
			cfg: config.BrokerConfig{
				Type: "nats",
				NATS: config.NATSConfig{InputSubject: "orders.events"},
			},
			want: "orders.events",
		},
		{
			name: "redis",
			cfg: config.BrokerConfig{
				Type:  "redis",
				Redis: config.RedisConfig{InputChannel: "relay.in"},
			},
			want: "relay.in",
		},
		{
			name: "unknown",
			cfg:  config.BrokerConfig{Type: "other"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InputTopic(tt.cfg))
		})
	}
}
