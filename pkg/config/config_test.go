package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv("test")

	if cfg.StorageBackend != BackendSQLite {
		t.Errorf("expected default backend sqlite, got %s", cfg.StorageBackend)
	}
	if cfg.HoldTTL != 5*time.Minute {
		t.Errorf("expected default hold TTL 5m, got %s", cfg.HoldTTL)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("expected sweeper disabled by default, got %s", cfg.SweepInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvStorageBackend, BackendMemory)
	t.Setenv(EnvHoldTTL, "90s")
	t.Setenv(EnvSweepInterval, "30s")
	t.Setenv(EnvRateLimitRPS, "2.5")
	t.Setenv(EnvEventsEnabled, "true")
	t.Setenv(EnvRedisDB, "not-a-number")

	cfg := FromEnv("test")

	if cfg.StorageBackend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.StorageBackend)
	}
	if cfg.HoldTTL != 90*time.Second {
		t.Errorf("expected 90s TTL, got %s", cfg.HoldTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected 30s sweep interval, got %s", cfg.SweepInterval)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("expected 2.5 rps, got %g", cfg.RateLimitRPS)
	}
	if !cfg.EventsEnabled {
		t.Errorf("expected events enabled")
	}
	if cfg.RedisDB != DefaultRedisDB {
		t.Errorf("unparseable value should fall back to default, got %d", cfg.RedisDB)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := FromEnv("test")
	cfg.Port = "0"
	cfg.StorageBackend = "postgres"
	cfg.HoldTTL = 0
	cfg.RateLimitBurst = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"1. Port", "StorageBackend", "HoldTTL", "RateLimitBurst"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error message, got:\n%s", want, msg)
		}
	}
}

func TestValidate_MongoBackend(t *testing.T) {
	cfg := FromEnv("test")
	cfg.StorageBackend = BackendMongo
	cfg.MongoURI = "postgres://user:secret@db"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for non-mongo URI")
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("credentials leaked into error: %v", err)
	}
}

func TestRedactMongoURI(t *testing.T) {
	got := redactMongoURI("mongodb://admin:hunter2@db:27017")
	if got != "mongodb://***:***@db:27017" {
		t.Errorf("unexpected redaction: %s", got)
	}
}
