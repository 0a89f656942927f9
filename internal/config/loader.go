package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.output_topic", "BROKER_KAFKA_OUTPUT_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("broker.nats.urls", "BROKER_NATS_URLS")
	viper.BindEnv("broker.nats.queue_group", "BROKER_NATS_QUEUE_GROUP")
	viper.BindEnv("broker.nats.input_subject", "BROKER_NATS_INPUT_SUBJECT")
	viper.BindEnv("broker.nats.output_subject", "BROKER_NATS_OUTPUT_SUBJECT")

	viper.BindEnv("broker.redis.host", "BROKER_REDIS_HOST")
	viper.BindEnv("broker.redis.port", "BROKER_REDIS_PORT")
	viper.BindEnv("broker.redis.password", "BROKER_REDIS_PASSWORD")
	viper.BindEnv("broker.redis.db", "BROKER_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("dispatch.graceful_timeout", "5s")
	viper.SetDefault("dispatch.watcher.policy", "unlimited")
	viper.SetDefault("dispatch.watcher.max_tries", 3)
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler.type", "always_on")
}
