package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	// DefaultOrdersTopic is the queue both the publisher and the worker
	// are bound to when no override is configured.
	DefaultOrdersTopic = "orders"
	// DLQSuffix is appended to a topic name to form its dead-letter topic.
	DLQSuffix = ".dlq"
)

const (
	ContentTypeJSON = "application/json"
)

const (
	CacheKeyPrefixProcessed = "processed:"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// DefaultSessionTimeout mirrors the extended lock-renewal window the
	// worker tolerates for slow message handlers.
	DefaultSessionTimeout = 5 * time.Minute

	DefaultIdempotencyTTLSeconds = 86400
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)
