package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"escaperoom/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Config covers the hold events producer in cmd/holds and the consumer
// behind roomctl events tail.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // none, gzip, snappy, lz4, zstd

	TailStart      string // newest or oldest
	TailMaxWait    time.Duration
	TailMaxRetries int

	EnableMiddleware bool
}

// Load reads KAFKA_* variables. Unset or unparsable variables keep their
// defaults; out-of-range values fail Validate.
func Load() (*Config, error) {
	brokers := strings.Split(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers), ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	cfg := &Config{
		Brokers: brokers,

		ProducerMaxAttempts:  getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout: getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerRequireAcks:  getEnvInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
		ProducerCompression:  strings.ToLower(getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression)),

		TailStart:      strings.ToLower(getEnvStr(EnvKafkaTailStart, DefaultTailStart)),
		TailMaxWait:    getEnvDuration(EnvKafkaTailMaxWait, DefaultTailMaxWait),
		TailMaxRetries: getEnvInt(EnvKafkaTailMaxRetries, DefaultTailMaxRetries),

		EnableMiddleware: getEnvBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StartOffset maps TailStart to the kafka-go reader offset.
func (cfg *Config) StartOffset() int64 {
	if cfg.TailStart == TailStartOldest {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

func (cfg *Config) Validate() error {
	var errors []string

	if len(cfg.Brokers) == 0 {
		errors = append(errors, "At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			errors = append(errors, fmt.Sprintf("Broker %d cannot be empty", i))
		}
	}

	if cfg.ProducerMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts))
	}
	if cfg.ProducerBatchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ProducerBatchTimeout must be positive, got: %s", cfg.ProducerBatchTimeout))
	}
	switch cfg.ProducerCompression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		errors = append(errors, fmt.Sprintf("ProducerCompression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.ProducerCompression))
	}
	switch cfg.ProducerRequireAcks {
	case -1, 0, 1:
	default:
		errors = append(errors, fmt.Sprintf("ProducerRequireAcks must be -1, 0, or 1, got: %d", cfg.ProducerRequireAcks))
	}

	if cfg.TailStart != TailStartNewest && cfg.TailStart != TailStartOldest {
		errors = append(errors, fmt.Sprintf("TailStart must be %q or %q, got: %q", TailStartNewest, TailStartOldest, cfg.TailStart))
	}
	if cfg.TailMaxWait <= 0 {
		errors = append(errors, fmt.Sprintf("TailMaxWait must be positive, got: %s", cfg.TailMaxWait))
	}
	if cfg.TailMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("TailMaxRetries cannot be negative, got: %d", cfg.TailMaxRetries))
	}

	if len(errors) > 0 {
		errMsg := "Kafka configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"producer_max_attempts", cfg.ProducerMaxAttempts,
		"producer_require_acks", cfg.ProducerRequireAcks,
		"producer_compression", cfg.ProducerCompression,
		"tail_start", cfg.TailStart,
		"tail_max_retries", cfg.TailMaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
