// Package debuglog records rendering anomalies to a JSONL side channel so
// the stack view itself stays clean.
package debuglog

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nixlim/stackview/internal/events"
)

// Logger receives anomalies the renderer and sources tolerate silently.
// Implementations must be safe for concurrent use.
type Logger interface {
	// LogRegression records an event whose timestamp is older than the
	// previously rendered one.
	LogRegression(e events.TraceEvent, last uint64)

	// LogSkipped records a source record that could not be decoded.
	LogSkipped(source string, position int64, err error)
}

// NopLogger discards all log output. This is the default when debug logging
// is not enabled.
type NopLogger struct{}

// LogRegression is a no-op.
func (NopLogger) LogRegression(events.TraceEvent, uint64) {}

// LogSkipped is a no-op.
func (NopLogger) LogSkipped(string, int64, error) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Timestamp string `json:"ts"`
	Run       string `json:"run"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	EventTS   uint64 `json:"event_ts,omitempty"`
	LastTS    uint64 `json:"last_ts,omitempty"`
	Source    string `json:"source,omitempty"`
	Position  int64  `json:"position,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FileLogger writes structured JSON debug output to an io.Writer.
// Each line is a complete JSON object (JSONL format) tagged with the run id.
type FileLogger struct {
	w   io.Writer
	run string
	now func() time.Time
	mu  sync.Mutex
}

// NewFileLogger creates a FileLogger that writes to the given writer. Every
// entry carries a fresh ULID identifying this process run.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{
		w:   w,
		run: ulid.Make().String(),
		now: time.Now,
	}
}

// RunID returns the identifier written with every entry.
func (l *FileLogger) RunID() string {
	return l.run
}

// LogRegression writes a JSON line for a timestamp that went backwards.
func (l *FileLogger) LogRegression(e events.TraceEvent, last uint64) {
	l.write(logEntry{
		Type:    "timestamp_regression",
		Name:    e.Name,
		EventTS: e.Timestamp,
		LastTS:  last,
	})
}

// LogSkipped writes a JSON line for an undecodable source record.
func (l *FileLogger) LogSkipped(source string, position int64, err error) {
	entry := logEntry{
		Type:     "skipped_record",
		Source:   source,
		Position: position,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	l.write(entry)
}

// write serialises a logEntry as JSON and writes it as a single line.
// Serialisation errors are silently dropped to avoid disrupting rendering.
func (l *FileLogger) write(entry logEntry) {
	entry.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	entry.Run = l.run

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
