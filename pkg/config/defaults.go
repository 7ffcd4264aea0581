package config

import "time"

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

const (
	DefaultPort = "8080"

	DefaultStorageBackend = BackendSQLite
	DefaultSQLitePath     = "escape_rooms.db"

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "escaperoom"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultHoldTTL       = 5 * time.Minute
	DefaultSweepInterval = time.Duration(0) // disabled

	DefaultRedisDB = 0

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10

	DefaultRequestTimeout = 10 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 64 * 1024 // 64KB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultEventsEnabled = false
	DefaultEventsTopic   = "escaperoom.holds"

	DefaultLogLevel = "info"
)
