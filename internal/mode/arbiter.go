// Package mode arbitrates the daemon operating mode from primary-backend
// health. The mode is owned exclusively by the Arbiter; all transitions go
// through its transition function and are observed by listeners in order.
package mode

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sentium/cortexd/internal/health"
)

// Mode is the daemon operating mode.
type Mode string

const (
	// ModePrimary routes reasoning to the primary backend.
	ModePrimary Mode = "primary"

	// ModeFallback routes reasoning to the secondary backend; execution
	// still goes to the execution backend.
	ModeFallback Mode = "fallback"

	// ModeDegraded means no reasoning backend is available at all;
	// only execution remains possible.
	ModeDegraded Mode = "degraded"
)

// Change describes a single mode transition. Immutable once created.
type Change struct {
	From      Mode      `json:"from"`
	To        Mode      `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Listener receives mode changes. Failures are isolated per listener.
type Listener func(Change)

// Arbiter owns the operating mode. It recomputes the mode from monitor
// status, bounded by a freshness window so heavy call volume never turns
// into probe volume.
type Arbiter struct {
	monitor     *health.Monitor
	hasFallback bool

	// fallbackReachable, when set, verifies the secondary backend before
	// the arbiter settles on ModeFallback.
	fallbackReachable func(ctx context.Context) bool

	// window bounds how long a computed mode stays fresh.
	window time.Duration

	mu        sync.Mutex
	current   Mode
	lastEval  time.Time
	forced    bool
	listeners []Listener
}

// Option configures the Arbiter.
type Option func(*Arbiter)

// WithFreshnessWindow overrides the mode freshness window.
func WithFreshnessWindow(d time.Duration) Option {
	return func(a *Arbiter) {
		a.window = d
	}
}

// WithFallbackCheck installs a reachability check for the secondary backend.
func WithFallbackCheck(check func(ctx context.Context) bool) Option {
	return func(a *Arbiter) {
		a.fallbackReachable = check
	}
}

// NewArbiter creates an arbiter bound to the given health monitor.
// hasFallback reports whether a secondary reasoning backend is configured.
// The mode starts optimistic at ModePrimary until the first evaluation.
func NewArbiter(monitor *health.Monitor, hasFallback bool, opts ...Option) *Arbiter {
	a := &Arbiter{
		monitor:     monitor,
		hasFallback: hasFallback,
		window:      monitor.Interval(),
		current:     ModePrimary,
	}
	for _, opt := range opts {
		opt(a)
	}

	// Recompute immediately on health transitions so mode changes track
	// outages without waiting for the next caller.
	monitor.OnStatusChange(func(_, next health.Status) {
		a.applyStatus(context.Background(), next, "health status changed to "+string(next.State))
	})

	return a
}

// CurrentMode returns the operating mode. A cached mode within the freshness
// window is returned as is; otherwise a fresh health check runs first. This
// bounds probe frequency to once per window regardless of call volume.
func (a *Arbiter) CurrentMode(ctx context.Context) Mode {
	a.mu.Lock()
	if a.forced || time.Since(a.lastEval) < a.window {
		current := a.current
		a.mu.Unlock()
		return current
	}
	a.mu.Unlock()

	status := a.monitor.CheckNow(ctx)
	return a.applyStatus(ctx, status, "freshness window expired")
}

// Mode returns the cached mode without triggering any probe.
func (a *Arbiter) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.current
}

// applyStatus recomputes the mode for a health status and transitions if
// needed. Manual overrides stay in force until released.
func (a *Arbiter) applyStatus(ctx context.Context, status health.Status, reason string) Mode {
	target := a.targetFor(ctx, status)

	a.mu.Lock()
	a.lastEval = time.Now()
	if a.forced {
		current := a.current
		a.mu.Unlock()
		return current
	}
	change, changed := a.transitionLocked(target, reason)
	a.mu.Unlock()

	if changed {
		a.notify(change)
	}
	return target
}

// targetFor maps a health status to the intended operating mode.
func (a *Arbiter) targetFor(ctx context.Context, status health.Status) Mode {
	if status.State.Usable() || status.State == health.StateUnknown {
		return ModePrimary
	}
	if a.hasFallback && a.fallbackOK(ctx) {
		return ModeFallback
	}
	return ModeDegraded
}

func (a *Arbiter) fallbackOK(ctx context.Context) bool {
	if a.fallbackReachable == nil {
		return true
	}
	return a.fallbackReachable(ctx)
}

// ForceFallback overrides automatic detection and pins the fallback mode.
// Like ForcePrimary it verifies the target is reachable first; pinning a
// mode onto a dead backend would silently pretend success.
func (a *Arbiter) ForceFallback(ctx context.Context, reason string) error {
	if !a.hasFallback {
		return fmt.Errorf("mode: cannot force fallback, no secondary reasoning backend configured")
	}
	if !a.fallbackOK(ctx) {
		return fmt.Errorf("mode: cannot force fallback, secondary reasoning backend is unreachable")
	}

	a.mu.Lock()
	a.forced = true
	a.lastEval = time.Now()
	change, changed := a.transitionLocked(ModeFallback, "manual override: "+reason)
	a.mu.Unlock()

	if changed {
		a.notify(change)
	}
	return nil
}

// ForcePrimary overrides automatic detection and pins the primary mode.
// It verifies the primary is actually reachable first; forcing a mode onto
// a dead backend would silently pretend success.
func (a *Arbiter) ForcePrimary(ctx context.Context, reason string) error {
	status := a.monitor.CheckNow(ctx)
	if !status.State.Usable() {
		return fmt.Errorf("mode: cannot force primary, backend %s is %s: %s",
			status.Backend, status.State, status.LastError)
	}

	a.mu.Lock()
	a.forced = true
	a.lastEval = time.Now()
	change, changed := a.transitionLocked(ModePrimary, "manual override: "+reason)
	a.mu.Unlock()

	if changed {
		a.notify(change)
	}
	return nil
}

// Release clears any manual override and resumes automatic arbitration.
func (a *Arbiter) Release(ctx context.Context) Mode {
	a.mu.Lock()
	a.forced = false
	a.lastEval = time.Time{}
	a.mu.Unlock()

	return a.CurrentMode(ctx)
}

// Forced reports whether a manual override is active.
func (a *Arbiter) Forced() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.forced
}

// OnChange registers a mode-change listener.
func (a *Arbiter) OnChange(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.listeners = append(a.listeners, l)
}

// transitionLocked moves to the target mode. Caller holds a.mu.
func (a *Arbiter) transitionLocked(target Mode, reason string) (Change, bool) {
	if a.current == target {
		return Change{}, false
	}

	change := Change{
		From:      a.current,
		To:        target,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	a.current = target
	return change, true
}

// notify delivers a change to all listeners, isolating failures so one
// broken observer cannot break the arbiter.
func (a *Arbiter) notify(change Change) {
	a.mu.Lock()
	listeners := make([]Listener, len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	log.Infof("Operating mode changed: %s -> %s (%s)", change.From, change.To, change.Reason)

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Mode change listener panicked: %v", r)
				}
			}()
			l(change)
		}()
	}
}
