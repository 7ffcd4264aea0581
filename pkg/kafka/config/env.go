package kafka_config

const (
	EnvKafkaBrokers = "KAFKA_BROKERS"

	// Hold event producer
	EnvKafkaProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"

	// roomctl events tail
	EnvKafkaTailStart      = "KAFKA_TAIL_START" // newest | oldest
	EnvKafkaTailMaxWait    = "KAFKA_TAIL_MAX_WAIT"
	EnvKafkaTailMaxRetries = "KAFKA_TAIL_MAX_RETRIES"

	EnvKafkaEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"
)
