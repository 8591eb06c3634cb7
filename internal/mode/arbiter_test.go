package mode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sentium/cortexd/internal/health"
)

// scriptedProber drives the health monitor from tests.
type scriptedProber struct {
	mu  sync.Mutex
	err error
}

func (p *scriptedProber) Name() string { return "primary" }

func (p *scriptedProber) Probe(ctx context.Context) (health.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return health.ProbeResult{}, p.err
	}
	return health.ProbeResult{Models: 1}, nil
}

func (p *scriptedProber) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func newTestMonitor(p health.Prober) *health.Monitor {
	cfg := health.DefaultConfig()
	cfg.FailureThreshold = 3
	cfg.Interval = 50 * time.Millisecond
	return health.NewMonitor(p, cfg)
}

// drive runs enough checks to push the monitor past the failure threshold.
func drive(monitor *health.Monitor, n int) {
	for i := 0; i < n; i++ {
		monitor.CheckNow(context.Background())
	}
}

func TestArbiterInitialMode(t *testing.T) {
	monitor := newTestMonitor(&scriptedProber{})
	arbiter := NewArbiter(monitor, true)

	if got := arbiter.Mode(); got != ModePrimary {
		t.Errorf("initial mode should be primary (optimistic), got %s", got)
	}
}

func TestArbiterModeConsistency(t *testing.T) {
	tests := []struct {
		name        string
		hasFallback bool
		failures    int
		want        Mode
	}{
		{"healthy primary", true, 0, ModePrimary},
		{"two failures stay primary", true, 2, ModePrimary},
		{"outage with fallback", true, 3, ModeFallback},
		{"outage without fallback", false, 3, ModeDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &scriptedProber{}
			monitor := newTestMonitor(prober)
			arbiter := NewArbiter(monitor, tt.hasFallback)

			drive(monitor, 1)
			if tt.failures > 0 {
				prober.setErr(errors.New("connection refused"))
				drive(monitor, tt.failures)
			}

			if got := arbiter.Mode(); got != tt.want {
				t.Errorf("got mode %s, want %s", got, tt.want)
			}
		})
	}
}

func TestArbiterFallbackReachability(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)
	arbiter := NewArbiter(monitor, true, WithFallbackCheck(func(ctx context.Context) bool {
		return false // fallback configured but unreachable
	}))

	prober.setErr(errors.New("down"))
	drive(monitor, 3)

	if got := arbiter.Mode(); got != ModeDegraded {
		t.Errorf("unreachable fallback should degrade, got %s", got)
	}
}

func TestArbiterFreshnessWindow(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)
	arbiter := NewArbiter(monitor, true, WithFreshnessWindow(time.Hour))

	// Prime one evaluation.
	arbiter.CurrentMode(context.Background())

	prober.setErr(errors.New("down"))

	// Within the window, repeated calls never trigger new probes;
	// the mode stays the cached one.
	for i := 0; i < 50; i++ {
		if got := arbiter.CurrentMode(context.Background()); got != ModePrimary {
			t.Fatalf("cached mode should hold inside freshness window, got %s", got)
		}
	}
}

func TestArbiterRefreshAfterWindow(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)
	arbiter := NewArbiter(monitor, true, WithFreshnessWindow(time.Nanosecond))

	prober.setErr(errors.New("down"))

	// Each call is past the window and probes again; after three the
	// failure threshold is crossed.
	var got Mode
	for i := 0; i < 3; i++ {
		time.Sleep(time.Millisecond)
		got = arbiter.CurrentMode(context.Background())
	}

	if got != ModeFallback {
		t.Errorf("expected fallback after threshold failures, got %s", got)
	}
}

func TestArbiterForceFallback(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)
	arbiter := NewArbiter(monitor, true)

	drive(monitor, 1)

	if err := arbiter.ForceFallback(context.Background(), "maintenance"); err != nil {
		t.Fatalf("force fallback failed: %v", err)
	}
	if got := arbiter.Mode(); got != ModeFallback {
		t.Errorf("expected fallback, got %s", got)
	}
	if !arbiter.Forced() {
		t.Error("override should be active")
	}

	// Healthy probes must not undo the override.
	drive(monitor, 2)
	if got := arbiter.CurrentMode(context.Background()); got != ModeFallback {
		t.Errorf("override should survive healthy probes, got %s", got)
	}

	// Release resumes automatic arbitration.
	if got := arbiter.Release(context.Background()); got != ModePrimary {
		t.Errorf("expected primary after release, got %s", got)
	}
}

func TestArbiterForceFallbackWithoutBackend(t *testing.T) {
	monitor := newTestMonitor(&scriptedProber{})
	arbiter := NewArbiter(monitor, false)

	if err := arbiter.ForceFallback(context.Background(), "maintenance"); err == nil {
		t.Error("force fallback without a configured backend should fail")
	}
}

func TestArbiterForceFallbackUnreachable(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)

	reachable := false
	arbiter := NewArbiter(monitor, true, WithFallbackCheck(func(ctx context.Context) bool {
		return reachable
	}))
	drive(monitor, 1)

	if err := arbiter.ForceFallback(context.Background(), "maintenance"); err == nil {
		t.Error("force fallback against an unreachable backend must fail explicitly")
	}
	if got := arbiter.Mode(); got != ModePrimary {
		t.Errorf("mode should be unchanged after failed override, got %s", got)
	}
	if arbiter.Forced() {
		t.Error("failed override must not leave a pin behind")
	}

	// Once the fallback becomes reachable, the override succeeds.
	reachable = true
	if err := arbiter.ForceFallback(context.Background(), "maintenance"); err != nil {
		t.Errorf("force fallback against reachable backend should work: %v", err)
	}
	if got := arbiter.Mode(); got != ModeFallback {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestArbiterForcePrimaryUnreachable(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)
	arbiter := NewArbiter(monitor, true)

	prober.setErr(errors.New("down"))
	drive(monitor, 3)

	if err := arbiter.ForcePrimary(context.Background(), "operator says so"); err == nil {
		t.Error("force primary against a dead backend must fail explicitly")
	}
	if got := arbiter.Mode(); got != ModeFallback {
		t.Errorf("mode should be unchanged after failed override, got %s", got)
	}

	// Once the backend recovers, the override succeeds.
	prober.setErr(nil)
	if err := arbiter.ForcePrimary(context.Background(), "recovered"); err != nil {
		t.Errorf("force primary against healthy backend should work: %v", err)
	}
	if got := arbiter.Mode(); got != ModePrimary {
		t.Errorf("expected primary, got %s", got)
	}
}

func TestArbiterChangeEvents(t *testing.T) {
	prober := &scriptedProber{}
	monitor := newTestMonitor(prober)
	arbiter := NewArbiter(monitor, true)

	var mu sync.Mutex
	var changes []Change
	arbiter.OnChange(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	// A broken listener must not break transitions.
	arbiter.OnChange(func(c Change) {
		panic("broken observer")
	})

	drive(monitor, 1)
	prober.setErr(errors.New("down"))
	drive(monitor, 3)
	prober.setErr(nil)
	drive(monitor, 1)

	mu.Lock()
	defer mu.Unlock()

	if len(changes) != 2 {
		t.Fatalf("expected 2 mode changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].From != ModePrimary || changes[0].To != ModeFallback {
		t.Errorf("first change should be primary->fallback, got %s->%s", changes[0].From, changes[0].To)
	}
	if changes[1].From != ModeFallback || changes[1].To != ModePrimary {
		t.Errorf("second change should be fallback->primary, got %s->%s", changes[1].From, changes[1].To)
	}
	for _, c := range changes {
		if c.Reason == "" {
			t.Error("change reason should not be empty")
		}
		if c.Timestamp.IsZero() {
			t.Error("change timestamp should be set")
		}
	}
}
