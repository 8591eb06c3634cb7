package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Monitor probes a single backend on an interval and maintains its Status
// with hysteresis. All probe-and-update sequences are serialized so callers
// never observe torn failure/success counters.
type Monitor struct {
	cfg    *Config
	prober Prober

	// checkMu serializes the probe-and-update sequence.
	checkMu sync.Mutex

	// mu guards status, listeners, and lifecycle fields.
	mu        sync.RWMutex
	status    Status
	listeners []StatusListener

	ctx     context.Context
	cancel  context.CancelFunc
	ticker  *time.Ticker
	done    chan struct{}
	running bool
	stopped bool
}

// NewMonitor creates a monitor for the given backend prober.
// The status starts as StateUnknown until the first probe completes.
func NewMonitor(prober Prober, cfg *Config) *Monitor {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Monitor{
		cfg:    cfg,
		prober: prober,
		status: Status{
			Backend: prober.Name(),
			State:   StateUnknown,
		},
		done: make(chan struct{}),
	}
}

// Status returns a copy of the current health status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.status
}

// OnStatusChange registers a listener invoked on every state transition.
func (m *Monitor) OnStatusChange(l StatusListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, l)
}

// CheckNow performs one probe and returns the updated status. Probe failures
// are converted into state transitions, never returned as errors.
func (m *Monitor) CheckNow(ctx context.Context) Status {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := m.prober.Probe(probeCtx)
	latency := time.Since(start)

	m.mu.Lock()
	old := m.status
	next := m.classify(old, result, latency, err)
	m.status = next

	changed := old.State != next.State
	stopped := m.stopped
	listeners := make([]StatusListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	// Fire listeners outside the status lock but still under checkMu, so
	// transitions are observed in order and exactly once.
	if changed && !stopped {
		log.Debugf("Backend %s health: %s -> %s", next.Backend, old.State, next.State)
		for _, l := range listeners {
			notifyListener(l, old, next)
		}
	}

	return next
}

// classify computes the next status from a probe result.
func (m *Monitor) classify(prev Status, result ProbeResult, latency time.Duration, err error) Status {
	next := prev
	next.LastCheck = time.Now()

	if err != nil {
		next.ConsecutiveFailures = prev.ConsecutiveFailures + 1
		next.ConsecutiveSuccesses = 0
		next.LastError = err.Error()

		if next.ConsecutiveFailures >= m.cfg.FailureThreshold {
			next.State = StateDisconnected
		} else {
			next.State = StateDegraded
		}
		return next
	}

	next.ConsecutiveFailures = 0
	next.ConsecutiveSuccesses = prev.ConsecutiveSuccesses + 1
	next.LastError = ""
	next.Latency = latency
	next.Models = result.Models

	switch {
	case latency > m.cfg.DegradedLatency:
		next.State = StateDegraded
	case next.ConsecutiveSuccesses >= m.cfg.RecoveryThreshold:
		next.State = StateConnected
	default:
		next.State = StateDegraded
	}
	return next
}

func notifyListener(l StatusListener, old, next Status) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Health status listener panicked: %v", r)
		}
	}()
	l(old, next)
}

// Start begins the background probe loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()

	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("health monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.ticker = time.NewTicker(m.cfg.Interval)
	m.done = make(chan struct{})
	m.running = true
	m.stopped = false
	m.mu.Unlock()

	go m.loop()

	// Initial probe so callers don't wait one full interval for a status.
	go m.CheckNow(m.ctx)

	return nil
}

// loop runs the background probe cycle until the context is cancelled.
func (m *Monitor) loop() {
	defer close(m.done)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.ticker.C:
			m.CheckNow(m.ctx)
		}
	}
}

// Stop cancels the probe loop and waits for it to exit. No status-change
// listeners fire after Stop returns.
func (m *Monitor) Stop() error {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return nil
	}

	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	if m.ticker != nil {
		m.ticker.Stop()
	}

	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("Health monitor stop timed out waiting for loop")
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	return nil
}

// IsRunning reports whether the background loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.running
}

// Interval returns the configured probe interval.
func (m *Monitor) Interval() time.Duration {
	return m.cfg.Interval
}
