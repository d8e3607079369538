package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nixlim/stackview/internal/events"
	"github.com/nixlim/stackview/internal/storage"
)

// Sink persists events. Close flushes anything buffered.
type Sink interface {
	Write(ev events.TraceEvent) error
	Close() error
}

// JSONLWriter writes one JSON event per line.
type JSONLWriter struct {
	bw *bufio.Writer
	c  io.Closer
}

// NewJSONLWriter returns a writer over w. If w is an io.Closer it is closed
// by Close.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	jw := &JSONLWriter{bw: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		jw.c = c
	}
	return jw
}

// Write appends one event.
func (w *JSONLWriter) Write(ev events.TraceEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Close flushes buffered output and closes the underlying writer.
func (w *JSONLWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}

// SinkOptions control CreateSink.
type SinkOptions struct {
	Format Format

	// Label names the recording in a SQLite sink, usually the input path.
	Label     string
	BatchSize int
}

// CreateSink opens path for writing (auto format infers it from the
// extension). SQLite sinks append a new recording to an existing database.
func CreateSink(ctx context.Context, path string, opts SinkOptions) (Sink, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	switch format {
	case FormatSQLite:
		rec, err := storage.OpenRecorder(ctx, path, opts.Label, opts.BatchSize)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case FormatJSONL, FormatMsgpack:
	default:
		return nil, fmt.Errorf("%w: cannot record to %s", ErrUnknownFormat, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if format == FormatMsgpack {
		return NewMsgpackWriter(f), nil
	}
	return NewJSONLWriter(f), nil
}

// Copy drains src into dst and returns the number of events written.
func Copy(ctx context.Context, dst Sink, src Reader) (int, error) {
	n := 0
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading trace: %w", err)
		}
		if err := dst.Write(ev); err != nil {
			return n, fmt.Errorf("writing event %d: %w", n+1, err)
		}
		n++
	}
}
