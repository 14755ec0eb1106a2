// Package config provides configuration loading for contactimport.
//
// Configuration comes from an optional YAML file overlaid with environment
// variables, then defaults fill anything left unset.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Classifier providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"
	ProviderDisabled  = "disabled"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Validation policies.
const (
	ValidationReachable = "reachable"
	ValidationStrict    = "strict"
)

// Duplicate-target policies.
const (
	DuplicateLastWins = "last_wins"
	DuplicateReject   = "reject"
)

// Config holds the complete contactimport configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Store      StoreConfig      `koanf:"store"`
	Import     ImportConfig     `koanf:"import"`
	Events     EventsConfig     `koanf:"events"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ClassifierConfig selects and tunes the mapping classifier.
type ClassifierConfig struct {
	Provider           string   `koanf:"provider"`
	APIKey             Secret   `koanf:"api_key"`
	BaseURL            string   `koanf:"base_url"`
	Model              string   `koanf:"model"`
	Timeout            Duration `koanf:"timeout"`
	MaxRetries         int      `koanf:"max_retries"`
	RateLimitPerMinute int      `koanf:"rate_limit_per_minute"`
}

// StoreConfig selects the schema store backend.
type StoreConfig struct {
	Driver     string `koanf:"driver"`
	SQLitePath string `koanf:"sqlite_path"`
}

// ImportConfig tunes the import executor.
type ImportConfig struct {
	BatchSize        int    `koanf:"batch_size"`
	Validation       string `koanf:"validation"`
	DuplicateTargets string `koanf:"duplicate_targets"`
	Concurrency      int    `koanf:"concurrency"`
}

// EventsConfig controls NATS progress events.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds the file-level logging knobs.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig controls OTLP trace and metric export.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	Metrics        bool     `koanf:"metrics"`
	Logs           bool     `koanf:"logs"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Classifier.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderHeuristic, ProviderDisabled:
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Classifier.MaxRetries < 0 {
		return fmt.Errorf("classifier max_retries must be >= 0, got %d", c.Classifier.MaxRetries)
	}
	if c.Classifier.RateLimitPerMinute < 1 {
		return fmt.Errorf("classifier rate_limit_per_minute must be >= 1, got %d", c.Classifier.RateLimitPerMinute)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store sqlite_path required for sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import batch_size must be >= 1, got %d", c.Import.BatchSize)
	}
	if c.Import.Validation != ValidationReachable && c.Import.Validation != ValidationStrict {
		return fmt.Errorf("unknown validation policy %q", c.Import.Validation)
	}
	if c.Import.DuplicateTargets != DuplicateLastWins && c.Import.DuplicateTargets != DuplicateReject {
		return fmt.Errorf("unknown duplicate_targets policy %q", c.Import.DuplicateTargets)
	}
	if c.Import.Concurrency < 1 {
		return fmt.Errorf("import concurrency must be >= 1, got %d", c.Import.Concurrency)
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http", "http/protobuf":
	default:
		return fmt.Errorf("unknown telemetry protocol %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		return errors.New("events nats_url required when events are enabled")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Classifier.Provider == "" {
		cfg.Classifier.Provider = ProviderAnthropic
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = Duration(60 * time.Second)
	}
	if cfg.Classifier.MaxRetries == 0 {
		cfg.Classifier.MaxRetries = 3
	}
	if cfg.Classifier.RateLimitPerMinute == 0 {
		cfg.Classifier.RateLimitPerMinute = 50
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "~/.config/contactimport/contacts.db"
	}

	if cfg.Import.BatchSize == 0 {
		cfg.Import.BatchSize = 100
	}
	if cfg.Import.Validation == "" {
		cfg.Import.Validation = ValidationReachable
	}
	if cfg.Import.DuplicateTargets == "" {
		cfg.Import.DuplicateTargets = DuplicateLastWins
	}
	if cfg.Import.Concurrency == 0 {
		cfg.Import.Concurrency = 1
	}

	if cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "contactimport"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
