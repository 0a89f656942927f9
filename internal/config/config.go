package config

import (
	"time"

	"relay/pkg/tracing"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  tracing.Config `mapstructure:"tracing"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	NATS  NATSConfig  `mapstructure:"nats"`
	Redis RedisConfig `mapstructure:"redis"`
}

type KafkaConfig struct {
	Brokers     []string    `mapstructure:"brokers"`
	GroupID     string      `mapstructure:"group_id"`
	InputTopic  string      `mapstructure:"input_topic"`
	OutputTopic string      `mapstructure:"output_topic"`
	DLQTopic    string      `mapstructure:"dlq_topic"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type NATSConfig struct {
	URLs          []string    `mapstructure:"urls"`
	Name          string      `mapstructure:"name"`
	QueueGroup    string      `mapstructure:"queue_group"`
	InputSubject  string      `mapstructure:"input_subject"`
	OutputSubject string      `mapstructure:"output_subject"`
	Retry         RetryConfig `mapstructure:"retry"`
}

type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	InputChannel  string `mapstructure:"input_channel"`
	OutputChannel string `mapstructure:"output_channel"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DispatchConfig struct {
	GracefulTimeout time.Duration        `mapstructure:"graceful_timeout"`
	Watcher         WatcherConfig        `mapstructure:"watcher"`
	RateLimit       RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker  CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Routes          []RouteConfig        `mapstructure:"routes"`
}

type WatcherConfig struct {
	// Policy is one of unlimited, single, counter, redis.
	Policy   string        `mapstructure:"policy"`
	MaxTries int           `mapstructure:"max_tries"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type CircuitBreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RouteConfig registers one handler item: messages matching the CEL filter
// expression are forwarded to the output topic.
type RouteConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Filter      string `mapstructure:"filter"`
	OutputTopic string `mapstructure:"output_topic"`
}
