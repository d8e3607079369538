// Package source reads recorded or live trace events from files and
// streams. Every reader yields events in source order and returns io.EOF
// once the input is exhausted.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nixlim/stackview/internal/debuglog"
	"github.com/nixlim/stackview/internal/events"
	"github.com/nixlim/stackview/internal/storage"
)

// Format names an on-disk trace encoding.
type Format string

const (
	FormatAuto      Format = "auto"
	FormatJSONL     Format = "jsonl"
	FormatMsgpack   Format = "msgpack"
	FormatOTLP      Format = "otlp"       // OTLP LogsData, one protojson document per line
	FormatOTLPProto Format = "otlp-proto" // a single binary OTLP LogsData message
	FormatSQLite    Format = "sqlite"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// DefaultPollInterval bounds how long a follow-mode reader sleeps between
// checks when no file notification arrives.
const DefaultPollInterval = 250 * time.Millisecond

// ErrUnknownFormat is returned when a format name or file extension is not
// recognised.
var ErrUnknownFormat = errors.New("unknown trace format")

// Reader yields events until io.EOF.
type Reader interface {
	Next(ctx context.Context) (events.TraceEvent, error)
}

// Source is a closable event stream.
type Source interface {
	Reader
	Close() error
}

// ParseFormat validates a format name. The empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSONL, FormatMsgpack, FormatOTLP, FormatOTLPProto, FormatSQLite:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// DetectFormat infers the format from a file name.
func DetectFormat(path string) (Format, error) {
	if path == Stdin {
		return FormatJSONL, nil
	}
	lower := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(lower, ".otlp.json"), strings.HasSuffix(lower, ".otlp.jsonl"), strings.HasSuffix(lower, ".otlp"):
		return FormatOTLP, nil
	case strings.HasSuffix(lower, ".pb"), strings.HasSuffix(lower, ".binpb"):
		return FormatOTLPProto, nil
	}
	switch filepath.Ext(lower) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	case ".msgpack", ".mpk", ".msgp":
		return FormatMsgpack, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, path)
}

// Options control how Open reads a trace.
type Options struct {
	Format Format

	// Follow keeps reading as the file grows instead of stopping at EOF.
	// Only stream formats (jsonl, msgpack, otlp) can be followed.
	Follow       bool
	PollInterval time.Duration

	// Recording selects one recording from a sqlite trace. Empty replays
	// every recording in insertion order.
	Recording string

	Logger debuglog.Logger
}

// Open returns a Source for path ("-" for stdin). ctx bounds follow-mode
// waits for new data.
func Open(ctx context.Context, path string, opts Options) (Source, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	log := opts.Logger
	if log == nil {
		log = debuglog.NopLogger{}
	}

	if format == FormatSQLite {
		if opts.Follow {
			return nil, fmt.Errorf("cannot follow a %s trace", format)
		}
		var sopts []storage.SourceOption
		if opts.Recording != "" {
			sopts = append(sopts, storage.WithRecording(opts.Recording))
		}
		src, err := storage.OpenSource(ctx, path, sopts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	r, closer, err := openInput(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	name := path
	if path == Stdin {
		name = "stdin"
	}

	var src Source
	switch format {
	case FormatJSONL:
		src = NewJSONL(r, WithName(name), WithLogger(log), WithCloser(closer))
	case FormatMsgpack:
		src = NewMsgpack(r, WithName(name), WithLogger(log), WithCloser(closer))
	case FormatOTLP:
		src = NewOTLP(r, WithName(name), WithLogger(log), WithCloser(closer))
	case FormatOTLPProto:
		if opts.Follow {
			_ = closer.Close()
			return nil, fmt.Errorf("cannot follow a %s trace", format)
		}
		src = NewOTLPProto(r, WithName(name), WithLogger(log), WithCloser(closer))
	default:
		_ = closer.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return src, nil
}

func openInput(ctx context.Context, path string, opts Options) (io.Reader, io.Closer, error) {
	if path == Stdin {
		// A pipe already blocks until the writer produces more data.
		r, closer := openStdin(ctx, os.Stdin)
		return r, closer, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening trace: %w", err)
	}
	if !opts.Follow {
		return f, f, nil
	}

	fr, err := newFollowReader(ctx, f, opts.PollInterval)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return fr, fr, nil
}

// option configures a reader.
type option struct {
	name   string
	log    debuglog.Logger
	closer io.Closer
}

// Option configures the readers returned by NewJSONL, NewMsgpack, NewOTLP
// and NewOTLPProto.
type Option func(*option)

// WithName labels the reader in debug log entries.
func WithName(name string) Option {
	return func(o *option) { o.name = name }
}

// WithLogger routes skipped-record reports to l.
func WithLogger(l debuglog.Logger) Option {
	return func(o *option) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCloser sets what Close releases.
func WithCloser(c io.Closer) Option {
	return func(o *option) { o.closer = c }
}

func newOption(opts []Option) option {
	o := option{name: "trace", log: debuglog.NopLogger{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o option) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
