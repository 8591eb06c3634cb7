// Copyright 2026 The cortexd Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and sanitizes the cortexd daemon configuration.
// Duration-typed settings are stored as strings in YAML and exposed through
// Get* helpers that always return a usable value.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root daemon configuration.
type Config struct {
	// Server holds the HTTP listener settings.
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging holds log output settings.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Primary configures the preferred local reasoning backend.
	Primary PrimaryConfig `yaml:"primary" json:"primary"`

	// Fallback configures the secondary cloud reasoning backend.
	// Leave the base URL empty to run without a reasoning fallback.
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`

	// Executor configures the code-execution agent CLI.
	Executor ExecutorConfig `yaml:"executor" json:"executor"`

	// Health configures the background health monitor for the primary backend.
	Health HealthConfig `yaml:"health" json:"health"`

	// Synthesis configures response assembly.
	Synthesis SynthesisConfig `yaml:"synthesis" json:"synthesis"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address. Default: "127.0.0.1".
	Host string `yaml:"host" json:"host"`

	// Port is the listen port. Default: 8317.
	Port int `yaml:"port" json:"port"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// ToFile switches output from stdout to a rotating file under the logs directory.
	ToFile bool `yaml:"to-file" json:"to-file"`

	// Level is the logrus level name ("debug", "info", "warn", "error").
	// Default: "info". Level changes are picked up on config reload.
	Level string `yaml:"level" json:"level"`

	// MaxTotalSizeMB bounds the total size of the logs directory. 0 disables cleanup.
	MaxTotalSizeMB int `yaml:"max-total-size-mb" json:"max-total-size-mb"`
}

// PrimaryConfig configures the local inference endpoint.
type PrimaryConfig struct {
	// Identifier names this backend in routing decisions and outcome records.
	// Default: "ollama".
	Identifier string `yaml:"identifier" json:"identifier"`

	// BaseURL is the endpoint root. Default: "http://localhost:11434".
	BaseURL string `yaml:"base-url" json:"base-url"`

	// Model is the model name sent on chat requests.
	Model string `yaml:"model" json:"model"`

	// Timeout is the per-call budget for think requests.
	// Default: "30s".
	Timeout string `yaml:"timeout" json:"timeout"`
}

// FallbackConfig configures the secondary, OpenAI-compatible reasoning backend.
type FallbackConfig struct {
	// Identifier names this backend. Default: "cloud".
	Identifier string `yaml:"identifier" json:"identifier"`

	// BaseURL is the API root, e.g. "https://api.example.com/v1".
	// Empty disables the fallback entirely.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey is the bearer token for the cloud API.
	APIKey string `yaml:"api-key" json:"api-key"`

	// Model is the model name sent on chat requests.
	Model string `yaml:"model" json:"model"`

	// Timeout is the per-call budget for fallback think requests.
	// Higher than the primary budget since cloud round-trips cost more.
	// Default: "60s".
	Timeout string `yaml:"timeout" json:"timeout"`
}

// ExecutorConfig configures the code-execution agent CLI.
type ExecutorConfig struct {
	// Identifier names this backend. Default: "agent-cli".
	Identifier string `yaml:"identifier" json:"identifier"`

	// BinaryPath is the executable invoked per task. Required.
	BinaryPath string `yaml:"binary-path" json:"binary-path"`

	// Args are default arguments prepended before the task text.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Timeout is the hard wall-clock budget per task. Default: "300s".
	Timeout string `yaml:"timeout" json:"timeout"`

	// ProbeTimeout bounds the --version availability probe. Default: "10s".
	ProbeTimeout string `yaml:"probe-timeout" json:"probe-timeout"`

	// MaxOutputChars bounds captured stdout+stderr. Default: 100000.
	MaxOutputChars int `yaml:"max-output-chars" json:"max-output-chars"`
}

// HealthConfig configures the primary-backend health monitor.
type HealthConfig struct {
	// Interval is the time between background probes. Default: "30s".
	// It also serves as the mode freshness window.
	Interval string `yaml:"interval" json:"interval"`

	// Timeout bounds a single probe. Default: "5s".
	Timeout string `yaml:"timeout" json:"timeout"`

	// FailureThreshold is the consecutive-failure count required before the
	// backend is classified DISCONNECTED rather than DEGRADED. Default: 3.
	FailureThreshold int `yaml:"failure-threshold" json:"failure-threshold"`

	// RecoveryThreshold is the consecutive-success count required before the
	// backend is classified CONNECTED again. Default: 1.
	RecoveryThreshold int `yaml:"recovery-threshold" json:"recovery-threshold"`

	// DegradedLatency is the probe latency above which a reachable backend is
	// classified DEGRADED instead of CONNECTED. Default: "2s".
	DegradedLatency string `yaml:"degraded-latency" json:"degraded-latency"`
}

// SynthesisConfig configures response assembly.
type SynthesisConfig struct {
	// MaxLength is the maximum combined response text length in characters
	// before the truncation marker is applied. Default: 4000.
	MaxLength int `yaml:"max-length" json:"max-length"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Sanitize()
	return cfg
}

// Load reads and sanitizes a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// Validate reports configuration errors that must stop startup.
// Runtime flakiness is degraded through; a missing executor binary is not.
func (cfg *Config) Validate() error {
	if cfg.Executor.BinaryPath == "" {
		return fmt.Errorf("config: executor.binary-path is required")
	}
	if cfg.Fallback.BaseURL != "" && cfg.Fallback.APIKey == "" {
		return fmt.Errorf("config: fallback.api-key is required when fallback.base-url is set")
	}
	return nil
}

// Sanitize normalizes the configuration in place, applying defaults for
// missing or out-of-range values.
func (cfg *Config) Sanitize() {
	if cfg == nil {
		return
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = 8317
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.MaxTotalSizeMB < 0 {
		cfg.Logging.MaxTotalSizeMB = 0
	}

	if cfg.Primary.Identifier == "" {
		cfg.Primary.Identifier = "ollama"
	}
	if cfg.Primary.BaseURL == "" {
		cfg.Primary.BaseURL = "http://localhost:11434"
	}
	cfg.Primary.BaseURL = strings.TrimSuffix(cfg.Primary.BaseURL, "/")
	cfg.Primary.Timeout = sanitizeDuration(cfg.Primary.Timeout, 30*time.Second, time.Second)

	if cfg.Fallback.Identifier == "" {
		cfg.Fallback.Identifier = "cloud"
	}
	cfg.Fallback.BaseURL = strings.TrimSuffix(cfg.Fallback.BaseURL, "/")
	cfg.Fallback.Timeout = sanitizeDuration(cfg.Fallback.Timeout, 60*time.Second, time.Second)

	if cfg.Executor.Identifier == "" {
		cfg.Executor.Identifier = "agent-cli"
	}
	cfg.Executor.Timeout = sanitizeDuration(cfg.Executor.Timeout, 300*time.Second, time.Second)
	cfg.Executor.ProbeTimeout = sanitizeDuration(cfg.Executor.ProbeTimeout, 10*time.Second, time.Second)
	if cfg.Executor.MaxOutputChars <= 0 {
		cfg.Executor.MaxOutputChars = 100_000
	}

	cfg.Health.Interval = sanitizeDuration(cfg.Health.Interval, 30*time.Second, time.Second)
	cfg.Health.Timeout = sanitizeDuration(cfg.Health.Timeout, 5*time.Second, 100*time.Millisecond)
	if cfg.Health.FailureThreshold < 1 {
		cfg.Health.FailureThreshold = 3
	}
	if cfg.Health.RecoveryThreshold < 1 {
		cfg.Health.RecoveryThreshold = 1
	}
	cfg.Health.DegradedLatency = sanitizeDuration(cfg.Health.DegradedLatency, 2*time.Second, time.Millisecond)

	if cfg.Synthesis.MaxLength <= 0 {
		cfg.Synthesis.MaxLength = 4000
	}
}

// sanitizeDuration parses a duration string, replacing empty, invalid, or
// too-small values with the fallback.
func sanitizeDuration(value string, fallback, minimum time.Duration) string {
	if value == "" {
		return fallback.String()
	}
	if d, err := time.ParseDuration(value); err != nil || d < minimum {
		return fallback.String()
	}
	return value
}

// HasFallback reports whether a secondary reasoning backend is configured.
func (cfg *Config) HasFallback() bool {
	return cfg != nil && cfg.Fallback.BaseURL != ""
}

// GetPrimaryTimeout returns the primary think budget as a time.Duration.
func (cfg *Config) GetPrimaryTimeout() time.Duration {
	return parseDuration(cfg.Primary.Timeout, 30*time.Second)
}

// GetFallbackTimeout returns the fallback think budget as a time.Duration.
func (cfg *Config) GetFallbackTimeout() time.Duration {
	return parseDuration(cfg.Fallback.Timeout, 60*time.Second)
}

// GetExecutorTimeout returns the execution budget as a time.Duration.
func (cfg *Config) GetExecutorTimeout() time.Duration {
	return parseDuration(cfg.Executor.Timeout, 300*time.Second)
}

// GetExecutorProbeTimeout returns the availability probe budget.
func (cfg *Config) GetExecutorProbeTimeout() time.Duration {
	return parseDuration(cfg.Executor.ProbeTimeout, 10*time.Second)
}

// GetHealthInterval returns the probe interval as a time.Duration.
func (cfg *Config) GetHealthInterval() time.Duration {
	return parseDuration(cfg.Health.Interval, 30*time.Second)
}

// GetHealthTimeout returns the per-probe budget as a time.Duration.
func (cfg *Config) GetHealthTimeout() time.Duration {
	return parseDuration(cfg.Health.Timeout, 5*time.Second)
}

// GetDegradedLatency returns the degraded-classification latency threshold.
func (cfg *Config) GetDegradedLatency() time.Duration {
	return parseDuration(cfg.Health.DegradedLatency, 2*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
