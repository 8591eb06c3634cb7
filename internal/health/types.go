// Package health provides background monitoring for the primary reasoning
// backend. It implements continuous probes with hysteresis so a single
// transient blip never triggers a full mode switch.
package health

import (
	"context"
	"time"
)

// State represents the classified reachability of a backend.
type State string

const (
	// StateUnknown means no probe has completed yet.
	StateUnknown State = "unknown"

	// StateConnected means the backend is reachable with acceptable latency.
	StateConnected State = "connected"

	// StateDegraded means the backend is reachable but slow, or has failed
	// fewer consecutive probes than the disconnect threshold.
	StateDegraded State = "degraded"

	// StateDisconnected means the backend failed enough consecutive probes
	// to be considered down.
	StateDisconnected State = "disconnected"
)

// Usable reports whether the state still allows routing to the backend.
func (s State) Usable() bool {
	return s == StateConnected || s == StateDegraded
}

// Status contains the health information for a monitored backend.
// It is mutated only by the Monitor after each probe.
type Status struct {
	// Backend is the identifier of the monitored backend.
	Backend string `json:"backend"`

	// State is the current classified state.
	State State `json:"state"`

	// LastCheck is when this status was last updated.
	LastCheck time.Time `json:"last_check"`

	// Latency is the duration of the last successful probe.
	Latency time.Duration `json:"latency"`

	// LastError holds the most recent probe error text, if any.
	LastError string `json:"last_error,omitempty"`

	// ConsecutiveFailures counts probe failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// ConsecutiveSuccesses counts probe successes since the last failure.
	ConsecutiveSuccesses int `json:"consecutive_successes"`

	// Models is the number of models the backend reported, when the probe
	// supports capability listing.
	Models int `json:"models"`
}

// ProbeResult carries backend capability details from a successful probe.
type ProbeResult struct {
	// Models is the number of available models, if the probe lists them.
	Models int
}

// Prober performs one minimal capability query against a backend.
type Prober interface {
	// Name returns the backend identifier this prober handles.
	Name() string

	// Probe performs a single health check. The returned error marks the
	// probe failed; classification is the Monitor's job.
	Probe(ctx context.Context) (ProbeResult, error)
}

// StatusListener receives (old, new) statuses when the classified state
// changes. Called once per transition, in transition order.
type StatusListener func(old, new Status)

// Config holds monitor tuning knobs.
type Config struct {
	// Interval is the time between background probes.
	Interval time.Duration

	// Timeout bounds a single probe.
	Timeout time.Duration

	// FailureThreshold is the consecutive-failure count required before the
	// backend is classified StateDisconnected rather than StateDegraded.
	FailureThreshold int

	// RecoveryThreshold is the consecutive-success count required before the
	// backend is classified StateConnected again.
	RecoveryThreshold int

	// DegradedLatency is the probe latency above which a reachable backend
	// is classified StateDegraded.
	DegradedLatency time.Duration
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:          30 * time.Second,
		Timeout:           5 * time.Second,
		FailureThreshold:  3,
		RecoveryThreshold: 1,
		DegradedLatency:   2 * time.Second,
	}
}
