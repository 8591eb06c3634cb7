package core

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// Record is the per-request trace handed to the recorder after each
// processed request.
type Record struct {
	RequestID   string
	Observation string
	Mode        string
	Verdict     string
	Source      string
	Confidence  float64
	Success     bool
	Duration    time.Duration
	Timestamp   time.Time
}

// Recorder receives one Record per processed request. Notification is
// fire-and-forget: a slow or failing recorder never blocks request flow.
type Recorder interface {
	Record(rec Record)
}

// LogRecorder writes each record as a structured log line.
type LogRecorder struct{}

func (LogRecorder) Record(rec Record) {
	log.Infof("Request complete: id=%s, mode=%s, verdict=%s, source=%s, confidence=%.2f, success=%t, duration=%s",
		rec.RequestID, rec.Mode, rec.Verdict, rec.Source, rec.Confidence, rec.Success, rec.Duration.Round(time.Millisecond))
}

// FileRecorder appends one JSON line per record to a file.
type FileRecorder struct {
	path string
	mu   sync.Mutex
}

// NewFileRecorder creates a JSONL recorder writing to path.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path}
}

func (r *FileRecorder) Record(rec Record) {
	line := "{}"
	line, _ = sjson.Set(line, "request_id", rec.RequestID)
	line, _ = sjson.Set(line, "observation", rec.Observation)
	line, _ = sjson.Set(line, "mode", rec.Mode)
	line, _ = sjson.Set(line, "verdict", rec.Verdict)
	line, _ = sjson.Set(line, "source", rec.Source)
	line, _ = sjson.Set(line, "confidence", rec.Confidence)
	line, _ = sjson.Set(line, "success", rec.Success)
	line, _ = sjson.Set(line, "duration_ms", rec.Duration.Milliseconds())
	line, _ = sjson.Set(line, "timestamp", rec.Timestamp.UTC().Format(time.RFC3339))

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warnf("Failed to open record file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		log.Warnf("Failed to append record: %v", err)
	}
}
