// Package synth merges reasoning and execution outcomes into the single
// response object callers see.
package synth

import (
	"fmt"
	"time"

	"github.com/sentium/cortexd/internal/action"
	"github.com/sentium/cortexd/internal/mode"
	"github.com/sentium/cortexd/internal/reason"
)

// DefaultMaxLength bounds the combined response text.
const DefaultMaxLength = 4000

// truncationMarker is appended whenever text is cut. Truncation is never
// silent.
const truncationMarker = "... [truncated]"

// separator divides reasoning text from execution output in a combined
// response.
const separator = "\n\n--- execution ---\n\n"

// Response is the final assembled result of one processed request.
// Immutable after construction.
type Response struct {
	RequestID      string            `json:"request_id,omitempty"`
	Mode           mode.Mode         `json:"mode"`
	Text           string            `json:"text"`
	Reasoning      *reason.Outcome   `json:"reasoning,omitempty"`
	Execution      *action.Outcome   `json:"execution,omitempty"`
	Success        bool              `json:"success"`
	ProcessingTime time.Duration     `json:"processing_time"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Synthesizer assembles responses. Zero value is not usable; construct
// with NewSynthesizer.
type Synthesizer struct {
	maxLength int
}

// NewSynthesizer creates a synthesizer. maxLength <= 0 selects the default.
func NewSynthesizer(maxLength int) *Synthesizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Synthesizer{maxLength: maxLength}
}

// Synthesize merges the available outcomes. Overall success follows the
// execution outcome when execution was attempted; a reasoning-only request
// that completed is successful regardless of its verdict.
func (s *Synthesizer) Synthesize(m mode.Mode, reasoning *reason.Outcome, execution *action.Outcome, processingTime time.Duration) *Response {
	var text string
	switch {
	case reasoning != nil && execution != nil:
		text = reasoning.Reasoning + separator + executionSummary(execution)
	case reasoning != nil:
		text = reasoning.Reasoning
	case execution != nil:
		text = executionSummary(execution)
	}

	success := true
	if execution != nil {
		success = execution.Success
	}

	text, truncated := truncate(text, s.maxLength)

	resp := &Response{
		Mode:           m,
		Text:           text,
		Reasoning:      reasoning,
		Execution:      execution,
		Success:        success,
		ProcessingTime: processingTime,
	}
	if truncated {
		resp.Metadata = map[string]string{"truncated": "true"}
	}
	return resp
}

// FormatError builds the response for a request that blew up upstream.
// Success is always false; the daemon itself keeps running.
func (s *Synthesizer) FormatError(err error, m mode.Mode, processingTime time.Duration) *Response {
	text, _ := truncate(fmt.Sprintf("processing failed: %v (the daemon continues running)", err), s.maxLength)
	return &Response{
		Mode:           m,
		Text:           text,
		Success:        false,
		ProcessingTime: processingTime,
	}
}

func executionSummary(out *action.Outcome) string {
	if out.Success {
		if out.Output == "" {
			return fmt.Sprintf("execution succeeded in %s", out.Duration.Round(time.Millisecond))
		}
		return out.Output
	}
	return fmt.Sprintf("execution failed: %s", out.Error)
}

// truncate cuts text to max runes plus the marker. The returned string is
// never longer than max + len(marker) runes.
func truncate(text string, max int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= max {
		return text, false
	}
	return string(runes[:max]) + truncationMarker, true
}
