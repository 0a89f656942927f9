package broker

import (
	"fmt"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	case constants.BrokerTypeNATS:
		return NewNATSProducer(cfg.NATS, log)
	case constants.BrokerTypeRedis:
		return NewRedisProducer(cfg.Redis, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return NewKafkaConsumer(cfg.Kafka, log), nil
	case constants.BrokerTypeNATS:
		return NewNATSConsumer(cfg.NATS, log)
	case constants.BrokerTypeRedis:
		return NewRedisConsumer(cfg.Redis, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// InputTopic resolves the configured input topic for the active broker.
func InputTopic(cfg config.BrokerConfig) string {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return cfg.Kafka.InputTopic
	case constants.BrokerTypeNATS:
		return cfg.NATS.InputSubject
	case constants.BrokerTypeRedis:
		return cfg.Redis.InputChannel
	default:
		return ""
	}
}
