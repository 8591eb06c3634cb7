// Package reason provides a uniform interface for asking a reasoning backend
// to think about an observation, regardless of which backend answers.
package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the closed set of recommendations a reasoning outcome carries.
// The zero value is VerdictWait so every unparseable response fails closed
// into "do nothing" rather than into action.
type Verdict int

const (
	// VerdictWait recommends taking no action.
	VerdictWait Verdict = iota

	// VerdictAct recommends performing the suggested action.
	VerdictAct

	// VerdictInvestigate recommends gathering more information first.
	VerdictInvestigate
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictWait:
		return "wait"
	case VerdictAct:
		return "act"
	case VerdictInvestigate:
		return "investigate"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalJSON renders the verdict name instead of its numeric value.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// parseVerdict maps a backend-supplied decision string to a Verdict.
// Anything unrecognized maps to VerdictWait.
func parseVerdict(s string) Verdict {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "act":
		return VerdictAct
	case "investigate":
		return VerdictInvestigate
	default:
		return VerdictWait
	}
}

// Outcome is the structured result of a think call.
type Outcome struct {
	// Observation is the originating observation text.
	Observation string `json:"observation"`

	// Reasoning is the backend's reasoning text.
	Reasoning string `json:"reasoning"`

	// Verdict is the categorical recommendation.
	Verdict Verdict `json:"verdict"`

	// Action is the suggested action descriptor, when the verdict is act.
	Action string `json:"action,omitempty"`

	// Confidence is always clamped to [0, 1].
	Confidence float64 `json:"confidence"`

	// Raw is the unmodified backend response, kept for debugging.
	Raw string `json:"raw,omitempty"`

	// Source identifies the backend that produced this outcome,
	// or "none" when no backend was reachable.
	Source string `json:"source"`

	// Attempts counts the backend calls made to produce this outcome.
	Attempts int `json:"attempts"`
}

// Backend is one reasoning service the gateway can call.
type Backend interface {
	// Identifier returns the backend identifier used in routing decisions.
	Identifier() string

	// Think sends the observation and returns the raw response text,
	// which may be structured JSON or free prose.
	Think(ctx context.Context, observation string, extra map[string]string) (string, error)
}
