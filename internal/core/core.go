// Copyright 2026 The cortexd Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package core ties the health monitor, mode arbiter, router, gateways and
// synthesizer into the single Process entry point.
package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sentium/cortexd/internal/action"
	"github.com/sentium/cortexd/internal/health"
	"github.com/sentium/cortexd/internal/mode"
	"github.com/sentium/cortexd/internal/reason"
	"github.com/sentium/cortexd/internal/synth"
)

// Core processes observations end to end. Safe for concurrent use.
type Core struct {
	monitor     *health.Monitor
	arbiter     *mode.Arbiter
	reasoner    *reason.Gateway
	executor    *action.Gateway
	synthesizer *synth.Synthesizer
	recorder    Recorder

	requests         atomic.Uint64
	fallbackRequests atomic.Uint64
	failures         atomic.Uint64
	executions       atomic.Uint64

	startTime time.Time
}

// NewCore assembles the processing pipeline. recorder may be nil to
// disable per-request recording.
func NewCore(monitor *health.Monitor, arbiter *mode.Arbiter, reasoner *reason.Gateway, executor *action.Gateway, synthesizer *synth.Synthesizer, recorder Recorder) *Core {
	return &Core{
		monitor:     monitor,
		arbiter:     arbiter,
		reasoner:    reasoner,
		executor:    executor,
		synthesizer: synthesizer,
		recorder:    recorder,
		startTime:   time.Now(),
	}
}

// Process runs one observation through reasoning and, when the verdict
// calls for it, execution. It never returns an error: anything that goes
// wrong becomes an error-shaped response and the daemon keeps running.
func (c *Core) Process(ctx context.Context, observation string, extra map[string]string) *synth.Response {
	requestID := uuid.New().String()
	start := time.Now()
	c.requests.Add(1)

	currentMode := c.arbiter.CurrentMode(ctx)
	if currentMode != mode.ModePrimary {
		c.fallbackRequests.Add(1)
	}

	resp := c.process(ctx, currentMode, observation, extra, start)
	resp.RequestID = requestID
	if !resp.Success {
		c.failures.Add(1)
	}

	c.notifyRecorder(resp, observation)
	return resp
}

// process is the panic boundary. A panic anywhere in the pipeline becomes
// an error response for this request only.
func (c *Core) process(ctx context.Context, currentMode mode.Mode, observation string, extra map[string]string, start time.Time) (resp *synth.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while processing request: %v", r)
			resp = c.synthesizer.FormatError(fmt.Errorf("internal error: %v", r), currentMode, time.Since(start))
		}
	}()

	reasoning := c.reasoner.Think(ctx, observation, extra)
	log.Debugf("Reasoning verdict: %s (confidence %.2f, source %s)",
		reasoning.Verdict, reasoning.Confidence, reasoning.Source)

	var execution *action.Outcome
	if reasoning.Verdict == reason.VerdictAct && reasoning.Action != "" {
		c.executions.Add(1)
		out := c.executor.Execute(ctx, reasoning.Action)
		execution = &out
	}

	return c.synthesizer.Synthesize(currentMode, &reasoning, execution, time.Since(start))
}

func (c *Core) notifyRecorder(resp *synth.Response, observation string) {
	if c.recorder == nil {
		return
	}
	rec := Record{
		RequestID:   resp.RequestID,
		Observation: observation,
		Mode:        string(resp.Mode),
		Success:     resp.Success,
		Duration:    resp.ProcessingTime,
		Timestamp:   time.Now(),
	}
	if resp.Reasoning != nil {
		rec.Verdict = resp.Reasoning.Verdict.String()
		rec.Source = resp.Reasoning.Source
		rec.Confidence = resp.Reasoning.Confidence
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warnf("Recorder panicked: %v", r)
			}
		}()
		c.recorder.Record(rec)
	}()
}

// Status reports a snapshot of daemon state for operators.
func (c *Core) Status() map[string]interface{} {
	hs := c.monitor.Status()

	status := map[string]interface{}{
		"mode":        string(c.arbiter.Mode()),
		"mode_forced": c.arbiter.Forced(),
		"uptime":      time.Since(c.startTime).Round(time.Second).String(),
		"requests": map[string]interface{}{
			"total":      c.requests.Load(),
			"fallback":   c.fallbackRequests.Load(),
			"failed":     c.failures.Load(),
			"executions": c.executions.Load(),
		},
		"primary_backend": map[string]interface{}{
			"state":                 string(hs.State),
			"last_check":            hs.LastCheck,
			"latency":               hs.Latency.String(),
			"consecutive_failures":  hs.ConsecutiveFailures,
			"consecutive_successes": hs.ConsecutiveSuccesses,
			"last_error":            hs.LastError,
			"models":                hs.Models,
		},
	}
	return status
}

// ForceFallback verifies the fallback backend is reachable and pins the
// fallback mode until released.
func (c *Core) ForceFallback(ctx context.Context, reason string) error {
	return c.arbiter.ForceFallback(ctx, reason)
}

// ForcePrimary re-probes the primary backend and pins primary mode only if
// it is actually reachable.
func (c *Core) ForcePrimary(ctx context.Context, reason string) error {
	return c.arbiter.ForcePrimary(ctx, reason)
}

// ReleaseMode drops any manual override and returns the recomputed mode.
func (c *Core) ReleaseMode(ctx context.Context) mode.Mode {
	return c.arbiter.Release(ctx)
}

// OnModeChange registers a listener for mode transitions.
func (c *Core) OnModeChange(l mode.Listener) {
	c.arbiter.OnChange(l)
}
