package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROCFLOW_BACKEND",
		"PROCFLOW_DATA_DIR",
		"REDIS_URL",
		"REDIS_TTL_SECONDS",
		"PROCFLOW_SQLITE_DSN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != ModeFile {
		t.Fatalf("expected default backend file, got %s", cfg.Backend)
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("expected default data dir, got %s", cfg.DataDir)
	}
	if cfg.RedisTTL != 0 {
		t.Fatalf("expected zero TTL by default, got %s", cfg.RedisTTL)
	}
}

func TestLoadRedisBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCFLOW_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_TTL_SECONDS", "3600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != ModeRedis {
		t.Fatalf("expected redis backend, got %s", cfg.Backend)
	}
	if cfg.RedisTTL != time.Hour {
		t.Fatalf("expected 1h TTL, got %s", cfg.RedisTTL)
	}
}

func TestLoadRejectsRedisWithoutURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCFLOW_BACKEND", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for redis backend without REDIS_URL")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCFLOW_BACKEND", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidateComposite(t *testing.T) {
	cfg := &Config{Backend: ModeComposite, DataDir: "./data"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected composite mode to require REDIS_URL")
	}

	cfg.RedisURL = "redis://localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadIgnoresInvalidTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_TTL_SECONDS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RedisTTL != 0 {
		t.Fatalf("expected invalid TTL to fall back to zero, got %s", cfg.RedisTTL)
	}
}
