// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the archive
// ingestion service.
//
// Configuration is loaded from a single file specified by:
//   - UCANSTREAM_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, staging,
// production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the service configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// ListenAddress is the TCP address the HTTP server binds.
	ListenAddress string `yaml:"listen_address"`

	// DataDir is the root directory for all persistent state:
	// archive blobs, the link/task databases, and the stream log.
	DataDir string `yaml:"data_dir"`

	// AuthTokenFile is the path to a file holding the shared secret
	// clients present as a Basic credential. Trailing whitespace is
	// stripped. Required.
	AuthTokenFile string `yaml:"auth_token_file"`

	// SigningKeyFile is the path to a file holding the service's
	// hex-encoded Ed25519 private key, as emitted by --generate-key.
	// Required.
	SigningKeyFile string `yaml:"signing_key_file"`

	// Stream configures the record log.
	Stream StreamConfig `yaml:"stream"`

	// Retry configures the store retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Pool configures SQLite connection pooling.
	Pool PoolConfig `yaml:"pool"`

	// EnvironmentOverrides contains per-environment overrides,
	// applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	ListenAddress string        `yaml:"listen_address,omitempty"`
	DataDir       string        `yaml:"data_dir,omitempty"`
	Stream        *StreamConfig `yaml:"stream,omitempty"`
	Retry         *RetryConfig  `yaml:"retry,omitempty"`
	Pool          *PoolConfig   `yaml:"pool,omitempty"`
}

// StreamConfig configures the partitioned record log.
type StreamConfig struct {
	// Partitions is the number of partitions records are sharded
	// into. Default: 4.
	Partitions int `yaml:"partitions"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "50ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetryConfig configures the bounded retry applied to store and
// stream operations.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per operation.
	// Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the delay before the first retry. Doubles per
	// attempt. Default: 50ms.
	BaseDelay Duration `yaml:"base_delay"`

	// MaxDelay caps the per-attempt delay. Default: 1s.
	MaxDelay Duration `yaml:"max_delay"`
}

// PoolConfig configures SQLite connection pooling.
type PoolConfig struct {
	// Size is the number of connections per database. Default: 4.
	Size int `yaml:"size"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; the file is still
// required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment:   Development,
		ListenAddress: "127.0.0.1:8080",
		DataDir:       filepath.Join(homeDir, ".cache", "ucanstream"),
		Stream:        StreamConfig{Partitions: 4},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(50 * time.Millisecond),
			MaxDelay:    Duration(time.Second),
		},
		Pool: PoolConfig{Size: 4},
	}
}

// Load loads configuration from the UCANSTREAM_CONFIG environment
// variable. There are no fallbacks — if the variable is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("UCANSTREAM_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("UCANSTREAM_CONFIG environment variable not set; " +
			"set it to the path of your ucanstream.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching the
// configured environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.ListenAddress != "" {
		c.ListenAddress = overrides.ListenAddress
	}
	if overrides.DataDir != "" {
		c.DataDir = overrides.DataDir
	}
	if overrides.Stream != nil && overrides.Stream.Partitions > 0 {
		c.Stream.Partitions = overrides.Stream.Partitions
	}
	if overrides.Retry != nil {
		if overrides.Retry.MaxAttempts > 0 {
			c.Retry.MaxAttempts = overrides.Retry.MaxAttempts
		}
		if overrides.Retry.BaseDelay > 0 {
			c.Retry.BaseDelay = overrides.Retry.BaseDelay
		}
		if overrides.Retry.MaxDelay > 0 {
			c.Retry.MaxDelay = overrides.Retry.MaxDelay
		}
	}
	if overrides.Pool != nil && overrides.Pool.Size > 0 {
		c.Pool.Size = overrides.Pool.Size
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.DataDir = expandVars(c.DataDir, vars)
	c.AuthTokenFile = expandVars(c.AuthTokenFile, vars)
	c.SigningKeyFile = expandVars(c.SigningKeyFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.ListenAddress == "" {
		errs = append(errs, fmt.Errorf("listen_address is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}
	if c.AuthTokenFile == "" {
		errs = append(errs, fmt.Errorf("auth_token_file is required"))
	}
	if c.SigningKeyFile == "" {
		errs = append(errs, fmt.Errorf("signing_key_file is required"))
	}
	if c.Stream.Partitions <= 0 {
		errs = append(errs, fmt.Errorf("stream.partitions must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LoadAuthToken reads the shared authentication secret.
func (c *Config) LoadAuthToken() (string, error) {
	data, err := os.ReadFile(c.AuthTokenFile)
	if err != nil {
		return "", fmt.Errorf("reading auth token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("auth token file %s is empty", c.AuthTokenFile)
	}
	return token, nil
}

// LoadSigningKey reads the service's hex-encoded Ed25519 private
// key.
func (c *Config) LoadSigningKey() (string, error) {
	data, err := os.ReadFile(c.SigningKeyFile)
	if err != nil {
		return "", fmt.Errorf("reading signing key: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("signing key file %s is empty", c.SigningKeyFile)
	}
	return key, nil
}

// EnsurePaths creates the data directory tree.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.DataDir,
		filepath.Join(c.DataDir, "blobs"),
	}
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
