package constants

import "time"

const ServiceName = "sieve"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	BrokerTypeKafka = "kafka"
	BrokerTypeNone  = "none"
)

const (
	CacheKeyPrefixFilter = "sieve:filter:"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
	FallbackError = "error"
)
