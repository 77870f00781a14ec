package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables, trying a .env file
// first for local development. In production the environment is injected
// directly and the missing file is expected.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Info("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges the env tags cannot express.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d (must be 1-65535)", c.Port)
	}
	if c.ClassifierTimeoutMs < 1 {
		return fmt.Errorf("invalid CLASSIFIER_TIMEOUT_MS: %d (must be positive)", c.ClassifierTimeoutMs)
	}
	if c.RetentionHours < 1 {
		return fmt.Errorf("invalid SESSION_RETENTION_HOURS: %d (must be positive)", c.RetentionHours)
	}
	for name, v := range map[string]int64{
		"POINTER_TIME_LIMIT_MS": c.PointerTimeLimitMs,
		"CLICK_TIME_LIMIT_MS":   c.ClickTimeLimitMs,
		"TYPING_TIME_LIMIT_MS":  c.TypingTimeLimitMs,
	} {
		if v < 1000 {
			return fmt.Errorf("invalid %s: %d (must be at least 1000)", name, v)
		}
	}
	return nil
}
