package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	// Give the watcher goroutine a moment to come up.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected reloaded level debug, got %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("sibling file edit must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}
