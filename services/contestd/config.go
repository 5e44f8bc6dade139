package contestd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for contestd.
type Config struct {
	ListenAddress   string          `yaml:"listen"`
	LedgerPath      string          `yaml:"ledger"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"`
	EventBuffer     int             `yaml:"event_buffer"`
	ExportDir       string          `yaml:"export_dir"`
	Log             LogConfig       `yaml:"log"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Audit           AuditConfig     `yaml:"audit"`
	Webhook         WebhookConfig   `yaml:"webhook"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	CORSOrigins     []string        `yaml:"cors_origins"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig configures JWT caller identity.
type AuthConfig struct {
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	HMACSecretEnv  string   `yaml:"hmac_secret_env"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

// RateLimitConfig sets token buckets per caller for mutating and read routes.
type RateLimitConfig struct {
	WritePerSecond float64 `yaml:"write_per_second"`
	WriteBurst     int     `yaml:"write_burst"`
	ReadPerSecond  float64 `yaml:"read_per_second"`
	ReadBurst      int     `yaml:"read_burst"`
}

// AuditConfig selects the agent audit database.
type AuditConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// WebhookConfig enables signed delivery of settlement events.
type WebhookConfig struct {
	URL         string   `yaml:"url"`
	Secret      string   `yaml:"secret"`
	SecretFile  string   `yaml:"secret_file"`
	MaxAttempts int      `yaml:"max_attempts"`
	MinBackoff  Duration `yaml:"min_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
}

// TelemetryConfig configures OTLP export. Environment variables win when set.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Traces      bool    `yaml:"traces"`
	Metrics     bool    `yaml:"metrics"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Webhook.normalise(); err != nil {
		return cfg, fmt.Errorf("webhook: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "services/contestd/ledger.toml"
	}
	if cfg.ShutdownTimeout.Duration == 0 {
		cfg.ShutdownTimeout.Duration = 10 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.RateLimit.WritePerSecond == 0 {
		cfg.RateLimit.WritePerSecond = 5
	}
	if cfg.RateLimit.WriteBurst == 0 {
		cfg.RateLimit.WriteBurst = 10
	}
	if cfg.RateLimit.ReadPerSecond == 0 {
		cfg.RateLimit.ReadPerSecond = 50
	}
	if cfg.RateLimit.ReadBurst == 0 {
		cfg.RateLimit.ReadBurst = 100
	}
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = "sqlite"
	}
	if cfg.Audit.DSN == "" {
		cfg.Audit.DSN = "file:contestd-audit.db?cache=shared"
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth hmac secret must be configured")
	}
	switch cfg.Audit.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("audit driver %q unsupported", cfg.Audit.Driver)
	}
	if cfg.RateLimit.WritePerSecond < 0 || cfg.RateLimit.ReadPerSecond < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample_ratio must be within [0, 1]")
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret must be configured when url is set")
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("auth configuration missing")
	}
	a.HMACSecret = strings.TrimSpace(a.HMACSecret)
	a.HMACSecretEnv = strings.TrimSpace(a.HMACSecretEnv)
	a.HMACSecretFile = strings.TrimSpace(a.HMACSecretFile)
	if a.HMACSecret != "" {
		return nil
	}
	switch {
	case a.HMACSecretEnv != "":
		value := strings.TrimSpace(os.Getenv(a.HMACSecretEnv))
		if value == "" {
			return fmt.Errorf("hmac_secret_env %s is empty", a.HMACSecretEnv)
		}
		a.HMACSecret = value
	case a.HMACSecretFile != "":
		contents, err := os.ReadFile(a.HMACSecretFile)
		if err != nil {
			return fmt.Errorf("read hmac_secret_file: %w", err)
		}
		a.HMACSecret = strings.TrimSpace(string(contents))
	}
	return nil
}

func (w *WebhookConfig) normalise() error {
	w.URL = strings.TrimSpace(w.URL)
	w.Secret = strings.TrimSpace(w.Secret)
	if path := strings.TrimSpace(w.SecretFile); path != "" && w.Secret == "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read secret_file: %w", err)
		}
		w.Secret = strings.TrimSpace(string(contents))
	}
	return nil
}
