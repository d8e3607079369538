package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/nixlim/stackview/internal/events"
)

// maxLineSize caps a single JSONL record.
const maxLineSize = 4 << 20

// JSONLReader reads one JSON-encoded event per line. Lines that fail to
// decode are reported to the debug logger and skipped.
type JSONLReader struct {
	option
	r    *bufio.Reader
	line int64
}

// NewJSONL returns a reader over r.
func NewJSONL(r io.Reader, opts ...Option) *JSONLReader {
	return &JSONLReader{
		option: newOption(opts),
		r:      bufio.NewReaderSize(r, 64<<10),
	}
}

// Next returns the next decodable event.
func (s *JSONLReader) Next(ctx context.Context) (events.TraceEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return events.TraceEvent{}, err
		}

		raw, readErr := readCappedLine(s.r)
		if len(raw) > 0 {
			s.line++
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				var ev events.TraceEvent
				err := json.Unmarshal(trimmed, &ev)
				if err == nil {
					return ev, nil
				}
				s.log.LogSkipped(s.name, s.line, err)
			}
		}
		if readErr != nil {
			return events.TraceEvent{}, readErr
		}
	}
}

// readCappedLine returns the next line of r including its newline. A line
// longer than maxLineSize is consumed whole and replaced by overlongMarker.
func readCappedLine(r *bufio.Reader) ([]byte, error) {
	var (
		buf      []byte
		overlong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !overlong && len(buf)+len(chunk) > maxLineSize {
			overlong = true
			buf = nil
		}
		if !overlong {
			buf = append(buf, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if overlong {
			return []byte(overlongMarker), err
		}
		return buf, err
	}
}

// overlongMarker stands in for a discarded line so it is counted and
// reported like any other undecodable record.
const overlongMarker = "<line exceeds 4 MiB>"
