package tui

import (
	"bytes"
	"sync"

	"github.com/nixlim/stackview/internal/events"
)

// LineWriter is the io.Writer the renderer targets in TUI mode. Completed
// lines go to the ring buffer; text after the last newline is held as the
// pending line (a syscall waiting for its exit, for example).
type LineWriter struct {
	buf *events.RingBuffer

	mu      sync.Mutex
	pending bytes.Buffer
}

// NewLineWriter returns a LineWriter feeding buf.
func NewLineWriter(buf *events.RingBuffer) *LineWriter {
	return &LineWriter{buf: buf}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			w.pending.Write(rest)
			return len(p), nil
		}
		w.pending.Write(rest[:i])
		w.buf.Add(w.pending.String())
		w.pending.Reset()
		rest = rest[i+1:]
	}
}

// Pending returns the incomplete trailing line, if any.
func (w *LineWriter) Pending() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.String()
}

// Buffer returns the ring buffer completed lines are stored in.
func (w *LineWriter) Buffer() *events.RingBuffer {
	return w.buf
}
