package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SnapshotDisabled as SNAPSHOT_PATH turns local persistence off.
const SnapshotDisabled = "-"

// Config holds all configuration for the application
type Config struct {
	LogLevel       string `yaml:"log_level"`
	Port           string `yaml:"port"`
	PrometheusPort string `yaml:"prometheus_port"`

	// DatabaseURL selects the Postgres event store. Empty means in-memory.
	DatabaseURL    string `yaml:"database_url"`
	MigrationsPath string `yaml:"migrations_path"`
	EnableTracing  bool   `yaml:"enable_tracing"`

	SnapshotPath string        `yaml:"snapshot_path"`
	ToastDelay   time.Duration `yaml:"toast_delay"`

	// Identity stamps remote writes. Empty means an anonymous identity is
	// generated at startup.
	Identity string `yaml:"identity"`

	// Timezone is the IANA zone event times are written in, used by the ICS
	// export.
	Timezone string `yaml:"timezone"`

	// TelegramToken enables the bot when set.
	TelegramToken string `yaml:"telegram_token"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		Port:           "8080",
		PrometheusPort: "9090",
		MigrationsPath: "migrations",
		SnapshotPath:   "./var/courtcal/snapshot.json",
		ToastDelay:     3 * time.Second,
		Timezone:       "UTC",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// COURTCAL_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("COURTCAL_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.PrometheusPort = getEnvOrDefault("PROMETHEUS_PORT", cfg.PrometheusPort)
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", cfg.MigrationsPath)
	cfg.SnapshotPath = getEnvOrDefault("SNAPSHOT_PATH", cfg.SnapshotPath)
	cfg.Identity = getEnvOrDefault("COURTCAL_IDENTITY", cfg.Identity)
	cfg.TelegramToken = getEnvOrDefault("TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.Timezone = getEnvOrDefault("COURTCAL_TIMEZONE", cfg.Timezone)

	if v := os.Getenv("TOAST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TOAST_DELAY %q: %w", v, err)
		}
		cfg.ToastDelay = d
	}
	if v := os.Getenv("COURTCAL_ENABLE_TRACING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COURTCAL_ENABLE_TRACING %q: %w", v, err)
		}
		cfg.EnableTracing = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.ToastDelay <= 0 {
		return fmt.Errorf("toast delay must be positive, got %s", c.ToastDelay)
	}
	if c.DatabaseURL != "" && c.MigrationsPath == "" {
		return errors.New("MIGRATIONS_PATH is required with DATABASE_URL")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SnapshotEnabled reports whether local persistence is on.
func (c *Config) SnapshotEnabled() bool {
	return c.SnapshotPath != "" && c.SnapshotPath != SnapshotDisabled
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found: %w", path, err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
