// Package config provides environment-driven configuration for the
// orchestrator's persistence layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects which storage backend the orchestrator uses.
type Mode string

const (
	ModeFile      Mode = "file"
	ModeRedis     Mode = "redis"
	ModeComposite Mode = "both"
	ModeSQLite    Mode = "sqlite"
	ModeMemory    Mode = "memory"
)

// Config holds the persistence settings read from the environment.
type Config struct {
	Backend   Mode
	DataDir   string
	RedisURL  string
	RedisTTL  time.Duration
	SQLiteDSN string
}

// Load reads configuration from environment variables, honoring a .env
// file when present.
func Load() (*Config, error) {
	// A missing .env file is fine; the process environment wins anyway.
	_ = godotenv.Load()

	ttlSeconds := getEnvInt("REDIS_TTL_SECONDS", 0)
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}

	cfg := &Config{
		Backend:   Mode(getEnv("PROCFLOW_BACKEND", string(ModeFile))),
		DataDir:   getEnv("PROCFLOW_DATA_DIR", "./data"),
		RedisURL:  getEnv("REDIS_URL", ""),
		RedisTTL:  time.Duration(ttlSeconds) * time.Second,
		SQLiteDSN: getEnv("PROCFLOW_SQLITE_DSN", "file:procflow.db"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case ModeFile:
		if c.DataDir == "" {
			return fmt.Errorf("PROCFLOW_DATA_DIR cannot be empty")
		}
	case ModeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("PROCFLOW_BACKEND=redis requires REDIS_URL")
		}
	case ModeComposite:
		if c.RedisURL == "" {
			return fmt.Errorf("PROCFLOW_BACKEND=both requires REDIS_URL")
		}
		if c.DataDir == "" {
			return fmt.Errorf("PROCFLOW_DATA_DIR cannot be empty")
		}
	case ModeSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("PROCFLOW_BACKEND=sqlite requires PROCFLOW_SQLITE_DSN")
		}
	case ModeMemory:
		// Nothing to validate.
	default:
		return fmt.Errorf("unknown PROCFLOW_BACKEND %q", c.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
