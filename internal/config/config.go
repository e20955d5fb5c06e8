// Package config loads and validates the gateway configuration.
//
// DESIGN: All configuration comes from YAML files with ${VAR:-default}
// environment expansion, so deployments stay explicit and auditable.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - monitoring.go: Logging and telemetry settings
//   - secrets.go:    Environment-backed secret resolution for vendor keys
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server     ServerConfig              `yaml:"server"`     // HTTP server settings
	Providers  map[string]ProviderConfig `yaml:"providers"`  // Per-vendor settings
	Plugins    PluginsConfig             `yaml:"plugins"`    // Callback plugin settings
	Dataset    DatasetConfig             `yaml:"dataset"`    // Dataset export sink
	Monitoring MonitoringConfig          `yaml:"monitoring"` // Telemetry and logging
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port          int           `yaml:"port"`            // Port to listen on
	ReadTimeout   time.Duration `yaml:"read_timeout"`    // Max time to read request
	WriteTimeout  time.Duration `yaml:"write_timeout"`   // Max time to write response
	RatePerSecond int           `yaml:"rate_per_second"` // Per-IP request rate limit
}

// ProviderConfig contains per-vendor connection settings. Values here are
// overridden by explicit request arguments and override environment secrets.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIBase string `yaml:"api_base"` // Optional base URL override
}

// PluginsConfig contains settings shared by callback plugins.
type PluginsConfig struct {
	// TurnOffMessageLogging redacts message and response content from
	// logging payloads before they reach any sink.
	TurnOffMessageLogging bool `yaml:"turn_off_message_logging"`
}

// DatasetConfig contains the dataset export sink settings.
type DatasetConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite database path
}

// expandEnvWithDefaults expands environment variables with support for
// default values: both ${VAR} and ${VAR:-default}.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, expanding
// ${VAR:-default} environment references and validating the result.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets external systems redirect log paths without
// modifying the base config files.
func (c *Config) applyEnvOverrides() {
	if envPath := os.Getenv("SESSION_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
	}
	if envPath := os.Getenv("SESSION_DATASET_DB"); envPath != "" {
		c.Dataset.Path = envPath
		c.Dataset.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}
	if c.Server.RatePerSecond < 0 {
		return fmt.Errorf("invalid server.rate_per_second: %d", c.Server.RatePerSecond)
	}

	if c.Dataset.Enabled && c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required when dataset export is enabled")
	}

	return nil
}
