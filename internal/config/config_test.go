package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Primary.Identifier != "ollama" {
		t.Errorf("expected primary identifier ollama, got %s", cfg.Primary.Identifier)
	}
	if cfg.Primary.BaseURL != "http://localhost:11434" {
		t.Errorf("unexpected primary base URL: %s", cfg.Primary.BaseURL)
	}
	if cfg.GetPrimaryTimeout() != 30*time.Second {
		t.Errorf("expected 30s primary timeout, got %v", cfg.GetPrimaryTimeout())
	}
	if cfg.GetFallbackTimeout() != 60*time.Second {
		t.Errorf("expected 60s fallback timeout, got %v", cfg.GetFallbackTimeout())
	}
	if cfg.GetExecutorTimeout() != 300*time.Second {
		t.Errorf("expected 300s executor timeout, got %v", cfg.GetExecutorTimeout())
	}
	if cfg.Health.FailureThreshold != 3 {
		t.Errorf("expected failure threshold 3, got %d", cfg.Health.FailureThreshold)
	}
	if cfg.Health.RecoveryThreshold != 1 {
		t.Errorf("expected recovery threshold 1, got %d", cfg.Health.RecoveryThreshold)
	}
	if cfg.Executor.MaxOutputChars != 100_000 {
		t.Errorf("expected output bound 100000, got %d", cfg.Executor.MaxOutputChars)
	}
	if cfg.Synthesis.MaxLength != 4000 {
		t.Errorf("expected synthesis max length 4000, got %d", cfg.Synthesis.MaxLength)
	}
	if cfg.HasFallback() {
		t.Error("default config should not have a fallback backend")
	}
}

func TestSanitizeRejectsBadDurations(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 30 * time.Second},
		{"garbage", "not-a-duration", 30 * time.Second},
		{"too small", "1ms", 30 * time.Second},
		{"valid", "45s", 45 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Primary.Timeout = tt.value
			cfg.Sanitize()

			if got := cfg.GetPrimaryTimeout(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9000
primary:
  base-url: "http://10.0.0.5:11434/"
  model: "qwen2.5:14b"
fallback:
  base-url: "https://api.example.com/v1"
  api-key: "sk-test"
  model: "gpt-test"
executor:
  binary-path: "/usr/local/bin/agent"
  timeout: "120s"
health:
  interval: "10s"
  failure-threshold: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Primary.BaseURL != "http://10.0.0.5:11434" {
		t.Errorf("trailing slash should be stripped, got %s", cfg.Primary.BaseURL)
	}
	if !cfg.HasFallback() {
		t.Error("fallback should be configured")
	}
	if cfg.GetExecutorTimeout() != 120*time.Second {
		t.Errorf("expected 120s executor timeout, got %v", cfg.GetExecutorTimeout())
	}
	if cfg.GetHealthInterval() != 10*time.Second {
		t.Errorf("expected 10s health interval, got %v", cfg.GetHealthInterval())
	}
	if cfg.Health.FailureThreshold != 5 {
		t.Errorf("expected failure threshold 5, got %d", cfg.Health.FailureThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "missing executor binary",
			mutate:  func(cfg *Config) {},
			wantErr: true,
		},
		{
			name: "executor configured",
			mutate: func(cfg *Config) {
				cfg.Executor.BinaryPath = "/usr/bin/agent"
			},
			wantErr: false,
		},
		{
			name: "fallback without api key",
			mutate: func(cfg *Config) {
				cfg.Executor.BinaryPath = "/usr/bin/agent"
				cfg.Fallback.BaseURL = "https://api.example.com/v1"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
