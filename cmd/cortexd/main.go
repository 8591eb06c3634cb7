// Copyright 2026 The cortexd Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the cortexd daemon. cortexd
// watches observations, reasons about them through a local model with a
// cloud fallback, and acts through a local agent CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/sentium/cortexd/internal/action"
	"github.com/sentium/cortexd/internal/api"
	"github.com/sentium/cortexd/internal/buildinfo"
	"github.com/sentium/cortexd/internal/config"
	"github.com/sentium/cortexd/internal/core"
	"github.com/sentium/cortexd/internal/health"
	"github.com/sentium/cortexd/internal/logging"
	"github.com/sentium/cortexd/internal/mode"
	"github.com/sentium/cortexd/internal/reason"
	"github.com/sentium/cortexd/internal/route"
	"github.com/sentium/cortexd/internal/synth"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	// Missing .env is fine; environment wins over file values.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	port := flag.Int("port", 0, "override the configured listen port")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cortexd %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logging.SetLevel(cfg.Logging.Level)
	if err := logging.ConfigureLogOutput(cfg.Logging.ToFile, "logs", cfg.Logging.MaxTotalSizeMB); err != nil {
		log.Warnf("Failed to configure log output: %v", err)
	}

	log.Infof("Starting cortexd %s", buildinfo.Version)

	if err := run(cfg, *configPath); err != nil {
		log.Fatalf("cortexd failed: %v", err)
	}
}

func run(cfg *config.Config, configPath string) error {
	healthCfg := &health.Config{
		Interval:          cfg.GetHealthInterval(),
		Timeout:           cfg.GetHealthTimeout(),
		FailureThreshold:  cfg.Health.FailureThreshold,
		RecoveryThreshold: cfg.Health.RecoveryThreshold,
		DegradedLatency:   cfg.GetDegradedLatency(),
	}

	prober := health.NewOllamaProber(cfg.Primary.Identifier, cfg.Primary.BaseURL)
	monitor := health.NewMonitor(prober, healthCfg)

	arbiterOpts := []mode.Option{
		mode.WithFreshnessWindow(cfg.GetHealthInterval()),
	}
	if cfg.HasFallback() {
		fallbackProber := health.NewOpenAICompatProber(cfg.Fallback.Identifier, cfg.Fallback.BaseURL, cfg.Fallback.APIKey)
		arbiterOpts = append(arbiterOpts, mode.WithFallbackCheck(func(ctx context.Context) bool {
			pctx, cancel := context.WithTimeout(ctx, cfg.GetHealthTimeout())
			defer cancel()
			_, err := fallbackProber.Probe(pctx)
			return err == nil
		}))
	}
	arbiter := mode.NewArbiter(monitor, cfg.HasFallback(), arbiterOpts...)

	backends := route.Backends{
		Primary:  cfg.Primary.Identifier,
		Executor: cfg.Executor.Identifier,
	}
	if cfg.HasFallback() {
		backends.Fallback = cfg.Fallback.Identifier
	}
	router, err := route.NewRouter(backends, arbiter)
	if err != nil {
		return err
	}

	reasonBackends := map[string]reason.Backend{
		cfg.Primary.Identifier: reason.NewOllamaBackend(
			cfg.Primary.Identifier, cfg.Primary.BaseURL, cfg.Primary.Model, cfg.GetPrimaryTimeout()),
	}
	timeouts := map[string]time.Duration{
		cfg.Primary.Identifier: cfg.GetPrimaryTimeout(),
	}
	if cfg.HasFallback() {
		reasonBackends[cfg.Fallback.Identifier] = reason.NewCloudBackend(
			cfg.Fallback.Identifier, cfg.Fallback.BaseURL, cfg.Fallback.APIKey, cfg.Fallback.Model, cfg.GetFallbackTimeout())
		timeouts[cfg.Fallback.Identifier] = cfg.GetFallbackTimeout()
	}
	reasoner := reason.NewGateway(router, reasonBackends, timeouts)

	executor := action.NewGateway(
		cfg.Executor.Identifier,
		cfg.Executor.BinaryPath,
		cfg.Executor.Args,
		cfg.GetExecutorTimeout(),
		action.WithMaxOutput(cfg.Executor.MaxOutputChars),
		action.WithProbeTimeout(cfg.GetExecutorProbeTimeout()),
	)
	if !executor.IsAvailable(context.Background()) {
		log.Warnf("Execution backend %s is not answering its availability probe", cfg.Executor.Identifier)
	}

	c := core.NewCore(monitor, arbiter, reasoner, executor, synth.NewSynthesizer(cfg.Synthesis.MaxLength), core.LogRecorder{})
	c.OnModeChange(func(change mode.Change) {
		log.Warnf("Mode change: %s -> %s (%s)", change.From, change.To, change.Reason)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := monitor.Start(ctx); err != nil {
		return err
	}

	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		logging.SetLevel(updated.Logging.Level)
	})
	if err != nil {
		log.Warnf("Config watcher unavailable: %v", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	server := api.NewServer(c)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown: %v", err)
	}
	if err := monitor.Stop(); err != nil {
		log.Warnf("Monitor shutdown: %v", err)
	}

	log.Info("cortexd stopped")
	return nil
}
