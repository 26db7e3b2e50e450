package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken  string `yaml:"telegram_token"`
	DatabaseURL    string `yaml:"database_url"`
	Timezone       string `yaml:"timezone"`
	SessionTTLMin  int    `yaml:"session_ttl_minutes"`
	StoreTimeoutMS int    `yaml:"store_timeout_ms"`
	Debug          bool   `yaml:"debug"`
}

// Load reads an optional YAML file (CONFIG_PATH, default config.yaml), applies
// environment overrides and defaults, and validates required fields.
func Load() (Config, error) {
	var cfg Config

	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// File is optional; env vars can carry everything.
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	overrideFromEnv(&cfg)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "reminder_bot.db"
	}
	if cfg.SessionTTLMin <= 0 {
		cfg.SessionTTLMin = 30
	}
	if cfg.StoreTimeoutMS <= 0 {
		cfg.StoreTimeoutMS = 10_000
	}
	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return cfg, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); token != "" {
		cfg.TelegramToken = token
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.DatabaseURL = dsn
	}
	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}
	if raw := strings.TrimSpace(os.Getenv("SESSION_TTL_MINUTES")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.SessionTTLMin = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("DEBUG")); raw != "" {
		cfg.Debug = raw == "1" || strings.EqualFold(raw, "true")
	}
}

// Location resolves the configured timezone. An empty timezone means
// server-local time; a non-empty value was already validated by Load.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionTTL returns the dialogue session expiry as a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// StoreTimeout bounds store access from scheduler fire callbacks.
func (c Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}
