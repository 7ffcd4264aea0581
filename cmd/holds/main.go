package main

import (
	"escaperoom/internal/holds/events"
	"escaperoom/internal/server"
	"escaperoom/internal/storage"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/config"
	"escaperoom/pkg/kafka"
	kafka_config "escaperoom/pkg/kafka/config"
	kafkamw "escaperoom/pkg/kafka/middleware"
)

const ServiceName = "holds"

func main() {
	cfg := config.Load(ServiceName)

	if cfg.StorageBackend == config.BackendMongo {
		cfg.SetMongo()
	}
	cfg.SetRedis()

	cfg.Log.Info("Starting Holds service")
	backend, err := storage.Open(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to open storage", "backend", cfg.StorageBackend, "error", err)
	}

	serverApp := server.New(cfg, backend, initPublisher(cfg), clock.System())
	serverApp.Run()
}

// initPublisher returns nil when events are disabled; the hold service then
// publishes nowhere.
func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		return nil
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kcfg, cfg.EventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kcfg.EnableMiddleware {
		producer.Use(kafkamw.LoggingProducerMiddleware(cfg.Log))
	}

	cfg.Log.Info("Hold events enabled", "topic", producer.Topic())
	return events.NewKafkaPublisher(producer)
}
