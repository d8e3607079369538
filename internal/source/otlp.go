package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/stackview/internal/events"
)

// EventNameAttribute carries the event family when LogRecord.EventName is
// empty.
const EventNameAttribute = "event.name"

var errNoEventName = errors.New("log record has no event name")

// OTLPReader reads OTLP LogsData documents, one protojson document per line,
// as written by the collector file exporter. Each log record becomes one
// event; records are yielded in document order.
type OTLPReader struct {
	option
	r       *bufio.Reader
	line    int64
	pending []events.TraceEvent
}

// NewOTLP returns a reader over r.
func NewOTLP(r io.Reader, opts ...Option) *OTLPReader {
	return &OTLPReader{option: newOption(opts), r: bufio.NewReaderSize(r, 256<<10)}
}

// Next returns the next log record as an event.
func (s *OTLPReader) Next(ctx context.Context) (events.TraceEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return events.TraceEvent{}, err
		}
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}

		raw, readErr := readCappedLine(s.r)
		if len(raw) > 0 {
			s.line++
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				var doc logspb.LogsData
				if err := protojson.Unmarshal(trimmed, &doc); err != nil {
					s.log.LogSkipped(s.name, s.line, err)
				} else {
					s.pending = logsToEvents(&doc, s.name, s.line, s.log.LogSkipped)
				}
			}
		}
		if readErr != nil && len(s.pending) == 0 {
			return events.TraceEvent{}, readErr
		}
	}
}

// OTLPProtoReader reads a single binary LogsData message.
type OTLPProtoReader struct {
	option
	r       io.Reader
	loaded  bool
	pending []events.TraceEvent
}

// NewOTLPProto returns a reader over r. The message is decoded on the first
// call to Next.
func NewOTLPProto(r io.Reader, opts ...Option) *OTLPProtoReader {
	return &OTLPProtoReader{option: newOption(opts), r: r}
}

// Next returns the next log record as an event.
func (s *OTLPProtoReader) Next(ctx context.Context) (events.TraceEvent, error) {
	if err := ctx.Err(); err != nil {
		return events.TraceEvent{}, err
	}
	if !s.loaded {
		s.loaded = true
		data, err := io.ReadAll(s.r)
		if err != nil {
			return events.TraceEvent{}, err
		}
		var doc logspb.LogsData
		if err := proto.Unmarshal(data, &doc); err != nil {
			return events.TraceEvent{}, fmt.Errorf("decoding OTLP logs: %w", err)
		}
		s.pending = logsToEvents(&doc, s.name, 0, s.log.LogSkipped)
	}
	if len(s.pending) == 0 {
		return events.TraceEvent{}, io.EOF
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

// logsToEvents flattens every log record in doc. Records without an event
// name are passed to skip.
func logsToEvents(doc *logspb.LogsData, name string, pos int64, skip func(string, int64, error)) []events.TraceEvent {
	var out []events.TraceEvent
	for _, rl := range doc.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				ev, err := LogRecordToEvent(rec)
				if err != nil {
					skip(name, pos, err)
					continue
				}
				out = append(out, ev)
			}
		}
	}
	return out
}

// LogRecordToEvent maps one OTLP log record onto a trace event:
//   - name is EventName, else the event.name attribute
//   - timestamp is time_unix_nano, else observed_time_unix_nano
//   - fields are the remaining attributes in order, plus msg from a string
//     body when no msg attribute exists
func LogRecordToEvent(rec *logspb.LogRecord) (events.TraceEvent, error) {
	ev := events.TraceEvent{
		Name:      rec.GetEventName(),
		Timestamp: rec.GetTimeUnixNano(),
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = rec.GetObservedTimeUnixNano()
	}

	hasMsg := false
	for _, kv := range rec.GetAttributes() {
		key := kv.GetKey()
		if key == EventNameAttribute {
			if ev.Name == "" {
				ev.Name = kv.GetValue().GetStringValue()
			}
			continue
		}
		if key == "msg" {
			hasMsg = true
		}
		ev.Fields = append(ev.Fields, events.Field{Name: key, Value: anyValue(kv.GetValue())})
	}
	if ev.Name == "" {
		return events.TraceEvent{}, errNoEventName
	}

	if body, ok := rec.GetBody().GetValue().(*commonpb.AnyValue_StringValue); ok && !hasMsg {
		ev.Fields = append(ev.Fields, events.Field{Name: "msg", Value: body.StringValue})
	}
	return ev, nil
}

func anyValue(v *commonpb.AnyValue) any {
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_BoolValue:
		return x.BoolValue
	case *commonpb.AnyValue_IntValue:
		return x.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return x.DoubleValue
	case *commonpb.AnyValue_BytesValue:
		return x.BytesValue
	case *commonpb.AnyValue_ArrayValue:
		items := make([]any, 0, len(x.ArrayValue.GetValues()))
		for _, item := range x.ArrayValue.GetValues() {
			items = append(items, anyValue(item))
		}
		return items
	case *commonpb.AnyValue_KvlistValue:
		fields := make([]events.Field, 0, len(x.KvlistValue.GetValues()))
		for _, kv := range x.KvlistValue.GetValues() {
			fields = append(fields, events.Field{Name: kv.GetKey(), Value: anyValue(kv.GetValue())})
		}
		return fields
	}
	return nil
}
