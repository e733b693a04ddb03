// Package config loads the mealplan configuration and plan seed documents.
//
// Both document kinds are YAML, checked against an embedded CUE schema
// before being decoded with unknown fields rejected.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mealplan/internal/quotation"
)

// Environment overrides applied after the file is loaded.
const (
	EnvDatabase   = "MEALPLAN_DB"
	EnvWebhookURL = "MEALPLAN_WEBHOOK_URL"
	EnvTimezone   = "MEALPLAN_TIMEZONE"
)

// Config is the full runtime configuration.
type Config struct {
	Database string            `yaml:"database"`
	Timezone string            `yaml:"timezone"`
	Lock     LockConfig        `yaml:"lock"`
	Store    StoreConfig       `yaml:"store"`
	Verify   VerifyConfig      `yaml:"verify"`
	Pricing  quotation.Pricing `yaml:"pricing"`
	Alerts   AlertsConfig      `yaml:"alerts"`
}

// LockConfig selects the advisory lock granularity and backend.
// The lease backend coordinates separate processes sharing one database.
type LockConfig struct {
	Scope        string        `yaml:"scope"`
	Backend      string        `yaml:"backend"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	TTL          time.Duration `yaml:"ttl"`
}

// StoreConfig bounds retries of transient store failures.
type StoreConfig struct {
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff"`
}

// VerifyConfig tunes the post-write consistency check.
type VerifyConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PublishGrace time.Duration `yaml:"publish_grace"`
	Workers      int           `yaml:"workers"`
}

// AlertsConfig selects where lost-update alerts go. Alerts are always
// written to the database outbox.
type AlertsConfig struct {
	Log        bool   `yaml:"log"`
	WebhookURL string `yaml:"webhook_url"`
}

// Lock backends.
const (
	BackendMemory = "memory"
	BackendLease  = "lease"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: "mealplan.db",
		Timezone: "UTC",
		Lock: LockConfig{
			Scope:        "plan",
			Backend:      BackendLease,
			Timeout:      5 * time.Second,
			PollInterval: 25 * time.Millisecond,
			TTL:          30 * time.Second,
		},
		Store: StoreConfig{
			RetryAttempts:   3,
			RetryBackoff:    50 * time.Millisecond,
			RetryMaxBackoff: time.Second,
		},
		Verify: VerifyConfig{
			Timeout:      10 * time.Second,
			PublishGrace: 5 * time.Second,
			Workers:      2,
		},
		Alerts: AlertsConfig{Log: true},
	}
}

// Load reads the configuration file at path over the defaults and applies
// environment overrides. An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse validates data against the config schema and decodes it into cfg.
// Fields absent from data keep their current values.
func Parse(source string, data []byte, cfg *Config) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(source, "#Config", doc); err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		c.Alerts.WebhookURL = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
}

// Check verifies cross-field constraints the schema cannot express.
func (c Config) Check() error {
	if c.Database == "" {
		return fmt.Errorf("config: database path is empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("config: lock timeout must be positive")
	}
	if c.Store.RetryMaxBackoff < c.Store.RetryBackoff {
		return fmt.Errorf("config: retry_max_backoff %s is below retry_backoff %s",
			c.Store.RetryMaxBackoff, c.Store.RetryBackoff)
	}
	if c.Verify.Timeout <= 0 {
		return fmt.Errorf("config: verification timeout must be positive")
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
