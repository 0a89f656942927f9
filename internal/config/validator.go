package config

import (
	"fmt"

	"relay/internal/constants"
)

// ValidateStatic checks everything that can be verified without connecting
// anywhere. CEL route filters are compiled later, at route-building time.
func ValidateStatic(cfg *Config) error {
	switch cfg.Broker.Type {
	case constants.BrokerTypeKafka:
		if len(cfg.Broker.Kafka.Brokers) == 0 {
			return fmt.Errorf("broker.kafka.brokers must not be empty")
		}
		if cfg.Broker.Kafka.InputTopic == "" {
			return fmt.Errorf("broker.kafka.input_topic is required")
		}
	case constants.BrokerTypeNATS:
		if len(cfg.Broker.NATS.URLs) == 0 {
			return fmt.Errorf("broker.nats.urls must not be empty")
		}
		if cfg.Broker.NATS.InputSubject == "" {
			return fmt.Errorf("broker.nats.input_subject is required")
		}
	case constants.BrokerTypeRedis:
		if cfg.Broker.Redis.Host == "" {
			return fmt.Errorf("broker.redis.host is required")
		}
		if cfg.Broker.Redis.InputChannel == "" {
			return fmt.Errorf("broker.redis.input_channel is required")
		}
	default:
		return fmt.Errorf("unknown broker type: %q", cfg.Broker.Type)
	}

	switch cfg.Dispatch.Watcher.Policy {
	case constants.WatcherPolicyUnlimited, constants.WatcherPolicySingle:
	case constants.WatcherPolicyCounter, constants.WatcherPolicyRedis:
		if cfg.Dispatch.Watcher.MaxTries < 1 {
			return fmt.Errorf("dispatch.watcher.max_tries must be >= 1 for policy %q", cfg.Dispatch.Watcher.Policy)
		}
	default:
		return fmt.Errorf("unknown watcher policy: %q", cfg.Dispatch.Watcher.Policy)
	}

	if cfg.Dispatch.Watcher.Policy == constants.WatcherPolicyRedis && cfg.Broker.Redis.Host == "" {
		return fmt.Errorf("watcher policy %q requires broker.redis.host", constants.WatcherPolicyRedis)
	}

	seen := make(map[string]bool, len(cfg.Dispatch.Routes))
	for i, route := range cfg.Dispatch.Routes {
		if route.Name == "" {
			return fmt.Errorf("dispatch.routes[%d].name is required", i)
		}
		if seen[route.Name] {
			return fmt.Errorf("duplicate route name: %q", route.Name)
		}
		seen[route.Name] = true
		if route.Filter == "" {
			return fmt.Errorf("route %q: filter expression is required", route.Name)
		}
		if route.OutputTopic == "" {
			return fmt.Errorf("route %q: output_topic is required", route.Name)
		}
	}

	return nil
}
