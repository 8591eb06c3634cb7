// Copyright 2026 The cortexd Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package action runs tasks through the local agent CLI. Every spawn or
// OS-level failure becomes an Outcome value; callers never see an error
// they have to branch on.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// maxOutputChars bounds captured subprocess output. Anything beyond is cut.
const maxOutputChars = 100000

// availabilityTimeout bounds the --version availability probe.
const availabilityTimeout = 10 * time.Second

// Outcome is the result of one execution attempt.
type Outcome struct {
	Success       bool          `json:"success"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
	Backend       string        `json:"backend"`
	CreatedFiles  []string      `json:"created_files,omitempty"`
	ModifiedFiles []string      `json:"modified_files,omitempty"`
}

// Gateway spawns the agent CLI binary for each task.
type Gateway struct {
	identifier   string
	binaryPath   string
	args         []string
	timeout      time.Duration
	probeTimeout time.Duration
	maxOutput    int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxOutput overrides the captured-output bound.
func WithMaxOutput(chars int) Option {
	return func(g *Gateway) {
		if chars > 0 {
			g.maxOutput = chars
		}
	}
}

// WithProbeTimeout overrides the availability probe budget.
func WithProbeTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.probeTimeout = d
		}
	}
}

// NewGateway creates an execution gateway for a local agent CLI binary.
// args are prepended before the task prompt on every invocation.
func NewGateway(identifier, binaryPath string, args []string, timeout time.Duration, opts ...Option) *Gateway {
	g := &Gateway{
		identifier:   identifier,
		binaryPath:   binaryPath,
		args:         args,
		timeout:      timeout,
		probeTimeout: availabilityTimeout,
		maxOutput:    maxOutputChars,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Identifier() string { return g.identifier }

// Timeout returns the configured wall-clock limit per task.
func (g *Gateway) Timeout() time.Duration { return g.timeout }

// IsAvailable probes the binary with --version. A binary that cannot
// answer within the probe timeout is treated as unavailable.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, g.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(pctx, g.binaryPath, "--version")
	if err := cmd.Run(); err != nil {
		log.Debugf("Executor availability probe failed: %v", err)
		return false
	}
	return true
}

// Execute runs the task through the agent CLI under a hard wall-clock
// timeout. When the gateway's own budget expires the reported Duration
// is the configured timeout; when the caller's deadline fires first the
// measured elapsed time is reported instead.
func (g *Gateway) Execute(ctx context.Context, task string) Outcome {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	finalArgs := append([]string{}, g.args...)
	finalArgs = append(finalArgs, task)

	cmd := exec.CommandContext(cctx, g.binaryPath, finalArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Executing task: %s %v", g.binaryPath, g.args)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if cctx.Err() == context.DeadlineExceeded {
		if ctx.Err() == context.DeadlineExceeded {
			// The caller's deadline fired before our own budget did.
			log.Warnf("Execution cancelled by caller deadline after %s", elapsed.Round(time.Millisecond))
			return Outcome{
				Success:  false,
				Error:    fmt.Sprintf("execution cancelled by caller deadline after %s", elapsed.Round(time.Millisecond)),
				Duration: elapsed,
				Backend:  g.identifier,
			}
		}
		log.Warnf("Execution timed out after %s", g.timeout)
		return Outcome{
			Success:  false,
			Error:    fmt.Sprintf("execution timed out after %s", g.timeout),
			Duration: g.timeout,
			Backend:  g.identifier,
		}
	}

	output := sanitizeOutput(stdout.String(), g.maxOutput)

	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			errMsg = fmt.Sprintf("exit code %d: %s", exitErr.ExitCode(), errMsg)
		}
		return Outcome{
			Success:  false,
			Output:   output,
			Error:    sanitizeOutput(errMsg, g.maxOutput),
			Duration: elapsed,
			Backend:  g.identifier,
		}
	}

	// Diagnostics the agent writes to stderr still matter on success,
	// so fold them into the output under the same size bound.
	if warn := strings.TrimSpace(stderr.String()); warn != "" {
		output = sanitizeOutput(output+"\n"+warn, g.maxOutput)
	}

	outcome := Outcome{
		Success:  true,
		Output:   output,
		Duration: elapsed,
		Backend:  g.identifier,
	}
	outcome.CreatedFiles, outcome.ModifiedFiles = extractFileLists(stdout.String())
	return outcome
}

// sanitizeOutput makes subprocess output safe to carry around: invalid
// UTF-8 bytes are replaced rather than rejected, and length is bounded to
// max runes.
func sanitizeOutput(s string, max int) string {
	s = strings.ToValidUTF8(s, "�")
	if len(s) > max {
		runes := []rune(s)
		if len(runes) > max {
			runes = runes[:max]
		}
		s = string(runes)
	}
	return strings.TrimSpace(s)
}

// extractFileLists pulls created/modified file lists from a JSON block in
// the CLI output, when the tool reports them. Plain-text output yields nil.
func extractFileLists(raw string) (created, modified []string) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, nil
	}
	block := raw[start : end+1]
	if !gjson.Valid(block) {
		return nil, nil
	}

	for _, v := range gjson.Get(block, "created_files").Array() {
		created = append(created, v.String())
	}
	for _, v := range gjson.Get(block, "modified_files").Array() {
		modified = append(modified, v.String())
	}
	return created, modified
}
