package reason

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sentium/cortexd/internal/route"
)

// Gateway routes reasoning requests to the backend chosen by the router,
// with at most one fallback attempt when the routed backend fails.
type Gateway struct {
	router   *route.Router
	backends map[string]Backend
	timeouts map[string]time.Duration
}

// NewGateway wires the router to concrete reasoning backends. The backends
// map is keyed by routing target name; timeouts holds the per-target request
// timeout (missing entries fall back to defaultTimeout).
func NewGateway(router *route.Router, backends map[string]Backend, timeouts map[string]time.Duration) *Gateway {
	return &Gateway{
		router:   router,
		backends: backends,
		timeouts: timeouts,
	}
}

const defaultThinkTimeout = 30 * time.Second

func (g *Gateway) timeoutFor(target string) time.Duration {
	if d, ok := g.timeouts[target]; ok && d > 0 {
		return d
	}
	return defaultThinkTimeout
}

// Think asks the routed reasoning backend to interpret the observation.
// A failed attempt against the primary target is retried once against the
// fallback target if one is configured. When no backend is reachable the
// outcome is a WAIT verdict with zero confidence, never an error: the
// caller keeps running regardless of backend weather.
func (g *Gateway) Think(ctx context.Context, observation string, extra map[string]string) Outcome {
	decision := g.router.Route(ctx, route.CategoryReasoning, "")

	if decision.Target == route.TargetNone {
		log.Warnf("No reasoning backend available: %s", decision.Reason)
		return Outcome{
			Observation: observation,
			Reasoning:   "no reasoning backend available: " + decision.Reason,
			Verdict:     VerdictWait,
			Confidence:  0,
			Source:      route.TargetNone,
			Attempts:    0,
		}
	}

	targets := []string{decision.Target}
	backends := g.router.Backends()
	if decision.Target == backends.Primary && backends.Fallback != "" {
		targets = append(targets, backends.Fallback)
	}

	var errs []string
	attempts := 0
	for _, target := range targets {
		backend, ok := g.backends[target]
		if !ok {
			log.Errorf("Routed to unknown reasoning backend %q", target)
			errs = append(errs, target+": not configured")
			continue
		}

		attempts++
		tctx, cancel := context.WithTimeout(ctx, g.timeoutFor(target))
		raw, err := backend.Think(tctx, observation, extra)
		cancel()

		if err != nil {
			log.Warnf("Reasoning attempt %d via %s failed: %v", attempts, target, err)
			errs = append(errs, target+": "+err.Error())
			continue
		}

		outcome := Normalize(raw, observation, backend.Identifier())
		outcome.Attempts = attempts
		return outcome
	}

	log.Errorf("All reasoning attempts failed: %s", strings.Join(errs, "; "))
	return Outcome{
		Observation: observation,
		Reasoning:   "all reasoning attempts failed: " + strings.Join(errs, "; "),
		Verdict:     VerdictWait,
		Confidence:  0,
		Source:      route.TargetNone,
		Attempts:    attempts,
	}
}
