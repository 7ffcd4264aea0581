package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	// One small event per commit.
	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 5 * time.Millisecond
	DefaultProducerRequireAcks  = -1
	DefaultProducerCompression  = "none"

	DefaultTailStart      = TailStartNewest
	DefaultTailMaxWait    = 250 * time.Millisecond
	DefaultTailMaxRetries = 2

	DefaultEnableMiddleware = true
)

const (
	TailStartNewest = "newest"
	TailStartOldest = "oldest"
)
