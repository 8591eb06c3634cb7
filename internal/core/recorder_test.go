package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestFileRecorderAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	r := NewFileRecorder(path)

	r.Record(Record{
		RequestID:   "req-1",
		Observation: "disk at 97%",
		Mode:        "primary",
		Verdict:     "act",
		Source:      "ollama",
		Confidence:  0.9,
		Success:     true,
		Duration:    1500 * time.Millisecond,
		Timestamp:   time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	})
	r.Record(Record{
		RequestID: "req-2",
		Mode:      "fallback",
		Verdict:   "wait",
		Success:   true,
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read record file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	first := gjson.Parse(lines[0])
	if first.Get("request_id").String() != "req-1" {
		t.Errorf("unexpected request id: %s", lines[0])
	}
	if first.Get("verdict").String() != "act" {
		t.Errorf("unexpected verdict: %s", lines[0])
	}
	if first.Get("confidence").Float() != 0.9 {
		t.Errorf("unexpected confidence: %s", lines[0])
	}
	if first.Get("duration_ms").Int() != 1500 {
		t.Errorf("unexpected duration: %s", lines[0])
	}
	if first.Get("timestamp").String() != "2026-08-31T12:00:00Z" {
		t.Errorf("unexpected timestamp: %s", lines[0])
	}

	second := gjson.Parse(lines[1])
	if second.Get("mode").String() != "fallback" {
		t.Errorf("unexpected mode: %s", lines[1])
	}
}

func TestFileRecorderUnwritablePathDoesNotPanic(t *testing.T) {
	r := NewFileRecorder("/nonexistent-dir/records.jsonl")

	// Must log and move on, never crash request flow.
	r.Record(Record{RequestID: "req-1"})
}
