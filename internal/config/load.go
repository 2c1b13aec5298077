package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Load reads an optional .env file, then an optional YAML file named by
// LIFETAG_CONFIG_PATH, then LIFETAG_* environment variables.
// Priority: ENV > YAML > defaults (env-default tags).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("LIFETAG_CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	c.Audit.Backend = strings.ToLower(strings.TrimSpace(c.Audit.Backend))
	if c.Log.Format == "" {
		c.Log.Format = "text"
		if c.IsProd() {
			c.Log.Format = "json"
		}
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Gate.AccessWindow <= 0 {
		return fmt.Errorf("gate.access_window must be > 0 (got %s)", c.Gate.AccessWindow)
	}
	if c.Gate.MaxAttempts <= 0 {
		return fmt.Errorf("gate.max_attempts must be > 0 (got %d)", c.Gate.MaxAttempts)
	}
	if c.Gate.SessionTTL <= 0 {
		return fmt.Errorf("gate.session_ttl must be > 0 (got %s)", c.Gate.SessionTTL)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must be >= 0 (got %d)", c.Retention.Days)
	}
	if c.Retention.MaxLogsPerProfile < 0 {
		return fmt.Errorf("retention.max_logs_per_profile must be >= 0 (got %d)", c.Retention.MaxLogsPerProfile)
	}
	if c.Retention.BatchSize <= 0 {
		return fmt.Errorf("retention.batch_size must be > 0 (got %d)", c.Retention.BatchSize)
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be > 0 (got %s)", c.Retention.Interval)
	}
	if c.HTTP.VerifyRatePerMinute < 0 {
		return fmt.Errorf("http.verify_rate_per_minute must be >= 0 (got %d)", c.HTTP.VerifyRatePerMinute)
	}

	switch c.Audit.Backend {
	case "sqlite", "memory":
	case "postgres":
		if c.Audit.PostgresDSN == "" {
			return errors.New("audit.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("audit.backend must be sqlite, postgres or memory (got %q)", c.Audit.Backend)
	}

	if c.Admin.TokenSecret != "" && len(c.Admin.TokenSecret) < 32 {
		return fmt.Errorf("admin.token_secret must be at least 32 characters (got %d)", len(c.Admin.TokenSecret))
	}
	return nil
}
