// Package route selects a target backend for each request from the current
// operating mode. Routing is a pure function of mode and configuration;
// probe frequency is bounded by the arbiter, never by callers of Route.
package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/sentium/cortexd/internal/mode"
)

// Category is the closed set of request kinds the router understands.
type Category int

const (
	// CategoryReasoning asks a backend to think about an observation.
	CategoryReasoning Category = iota

	// CategoryExecution asks the execution backend to perform a task.
	CategoryExecution
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryReasoning:
		return "reasoning"
	case CategoryExecution:
		return "execution"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// TargetNone is the sentinel target when no reasoning backend is available.
// Callers must treat it as "wait", not as an error.
const TargetNone = "none"

// ErrNoExecutionBackend indicates the router was built without an execution
// backend. This is a configuration bug, not a runtime condition.
var ErrNoExecutionBackend = errors.New("route: no execution backend configured")

// Decision is an immutable routing record, created fresh per request.
type Decision struct {
	// Target is the selected backend identifier, or TargetNone.
	Target string `json:"target"`

	// Mode is the operating mode in effect when the decision was made.
	Mode mode.Mode `json:"mode"`

	// Reason explains the selection.
	Reason string `json:"reason"`

	// Weight expresses confidence in the selection (0.0 to 1.0).
	Weight float64 `json:"weight"`
}

// Backends names the configured backend identifiers.
type Backends struct {
	// Primary is the preferred reasoning backend identifier.
	Primary string

	// Fallback is the secondary reasoning backend identifier.
	// Empty means no reasoning fallback exists.
	Fallback string

	// Executor is the execution backend identifier. Required.
	Executor string
}

// Router produces routing decisions. It holds no mutable state.
type Router struct {
	backends Backends
	arbiter  *mode.Arbiter
}

// NewRouter creates a router over the configured backends. A missing
// execution backend is rejected here so Route itself can stay error-free.
func NewRouter(backends Backends, arbiter *mode.Arbiter) (*Router, error) {
	if backends.Executor == "" {
		return nil, ErrNoExecutionBackend
	}
	if backends.Primary == "" {
		return nil, errors.New("route: no primary reasoning backend configured")
	}
	return &Router{
		backends: backends,
		arbiter:  arbiter,
	}, nil
}

// Route selects a target backend for the category. An explicit preferred
// backend is honored unconditionally. Repeated calls with unchanged mode
// and no preference always return the same target.
func (r *Router) Route(ctx context.Context, category Category, preferred string) Decision {
	current := r.arbiter.CurrentMode(ctx)

	if preferred != "" {
		return Decision{
			Target: preferred,
			Mode:   current,
			Reason: "explicit caller preference",
			Weight: 1.0,
		}
	}

	switch category {
	case CategoryExecution:
		// Execution capability is independent of reasoning-backend health.
		return Decision{
			Target: r.backends.Executor,
			Mode:   current,
			Reason: "execution always routes to the execution backend",
			Weight: 1.0,
		}

	case CategoryReasoning:
		if current == mode.ModePrimary {
			return Decision{
				Target: r.backends.Primary,
				Mode:   current,
				Reason: "primary mode routes reasoning to the primary backend",
				Weight: 1.0,
			}
		}
		if r.backends.Fallback != "" {
			return Decision{
				Target: r.backends.Fallback,
				Mode:   current,
				Reason: "primary unavailable, using fallback reasoning backend",
				Weight: 0.8,
			}
		}
		return Decision{
			Target: TargetNone,
			Mode:   current,
			Reason: "no reasoning backend available",
			Weight: 0.0,
		}
	}

	// Unreachable with the closed Category set.
	return Decision{
		Target: TargetNone,
		Mode:   current,
		Reason: fmt.Sprintf("unknown category %s", category),
		Weight: 0.0,
	}
}

// Backends returns the configured backend identifiers.
func (r *Router) Backends() Backends {
	return r.backends
}
