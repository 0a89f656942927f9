package constants

import "time"

// Header names carried on raw messages across every transport.
const (
	HeaderMessageID     = "message_id"
	HeaderCorrelationID = "correlation_id"
	HeaderContentType   = "content_type"
	HeaderReplyTo       = "reply_to"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaMinBytes     = 10e3
	KafkaMaxBytes     = 10e6
)

const (
	NATSConnectTimeout = 5 * time.Second
	NATSReconnectWait  = 2 * time.Second
)

const (
	DefaultGracefulTimeout = 5 * time.Second
	ShutdownTimeout        = 5 * time.Second
)

const (
	WatcherPolicyUnlimited = "unlimited"
	WatcherPolicySingle    = "single"
	WatcherPolicyCounter   = "counter"
	WatcherPolicyRedis     = "redis"
)

const (
	BrokerTypeKafka = "kafka"
	BrokerTypeNATS  = "nats"
	BrokerTypeRedis = "redis"
)
