// ABOUTME: Configuration loading and parsing for circle-core.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete circle-core configuration.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RegistryConfig holds agent liveness and scoring timing.
type RegistryConfig struct {
	StaleTimeout    time.Duration `yaml:"-"`
	SweepInterval   time.Duration `yaml:"-"`
	FreshnessWindow time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	StaleTimeoutRaw    string `yaml:"stale_timeout"`
	SweepIntervalRaw   string `yaml:"sweep_interval"`
	FreshnessWindowRaw string `yaml:"freshness_window"`
}

// WorkflowConfig holds workflow engine tuning.
type WorkflowConfig struct {
	// EventBufferCap bounds each workflow's ring of recent events.
	EventBufferCap int `yaml:"event_buffer_cap"`

	DedupeTTL        time.Duration `yaml:"-"`
	DedupeMaxEntries int           `yaml:"dedupe_max_entries"`

	DedupeTTLRaw string `yaml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses raw YAML configuration content.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. An unset variable expands to an empty
// string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that configured values are usable. Zero values are
// allowed everywhere; components fall back to their own defaults.
func (c *Config) Validate() error {
	if c.Workflow.EventBufferCap < 0 {
		return fmt.Errorf("workflow.event_buffer_cap must not be negative")
	}
	if c.Workflow.DedupeMaxEntries < 0 {
		return fmt.Errorf("workflow.dedupe_max_entries must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug/info/warn/error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text/json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Registry.StaleTimeoutRaw != "" {
		cfg.Registry.StaleTimeout, err = time.ParseDuration(cfg.Registry.StaleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing stale_timeout %q: %w", cfg.Registry.StaleTimeoutRaw, err)
		}
	}

	if cfg.Registry.SweepIntervalRaw != "" {
		cfg.Registry.SweepInterval, err = time.ParseDuration(cfg.Registry.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Registry.SweepIntervalRaw, err)
		}
	}

	if cfg.Registry.FreshnessWindowRaw != "" {
		cfg.Registry.FreshnessWindow, err = time.ParseDuration(cfg.Registry.FreshnessWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing freshness_window %q: %w", cfg.Registry.FreshnessWindowRaw, err)
		}
	}

	if cfg.Workflow.DedupeTTLRaw != "" {
		cfg.Workflow.DedupeTTL, err = time.ParseDuration(cfg.Workflow.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Workflow.DedupeTTLRaw, err)
		}
	}

	return nil
}
