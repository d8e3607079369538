package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/nixlim/stackview/internal/events"
)

// MsgpackReader reads a stream of msgpack maps with the keys name,
// timestamp_ns and fields. Nested maps keep their key order.
//
// msgpack has no record delimiter, so a structurally broken stream ends the
// read with an error. Well-formed records without a name are skipped.
type MsgpackReader struct {
	option
	dec    *msgpack.Decoder
	record int64
}

// NewMsgpack returns a reader over r.
func NewMsgpack(r io.Reader, opts ...Option) *MsgpackReader {
	return &MsgpackReader{
		option: newOption(opts),
		dec:    msgpack.NewDecoder(bufio.NewReader(r)),
	}
}

// Next returns the next named event.
func (s *MsgpackReader) Next(ctx context.Context) (events.TraceEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return events.TraceEvent{}, err
		}

		n, err := s.dec.DecodeMapLen()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return events.TraceEvent{}, io.EOF
			}
			return events.TraceEvent{}, fmt.Errorf("msgpack record %d: %w", s.record+1, err)
		}
		s.record++
		if n < 0 { // nil in place of a record
			continue
		}

		ev, err := s.decodeRecord(n)
		if err != nil {
			return events.TraceEvent{}, fmt.Errorf("msgpack record %d: %w", s.record, unexpectedEOF(err))
		}
		if ev.Name == "" {
			s.log.LogSkipped(s.name, s.record, events.ErrNoName)
			continue
		}
		return ev, nil
	}
}

func (s *MsgpackReader) decodeRecord(n int) (events.TraceEvent, error) {
	var ev events.TraceEvent
	for i := 0; i < n; i++ {
		key, err := s.dec.DecodeString()
		if err != nil {
			return ev, err
		}
		switch key {
		case "name":
			ev.Name, err = s.dec.DecodeString()
		case "timestamp_ns":
			ev.Timestamp, err = s.dec.DecodeUint64()
		case "fields":
			ev.Fields, err = decodeMsgpackFields(s.dec)
		default:
			err = s.dec.Skip()
		}
		if err != nil {
			return ev, fmt.Errorf("%s: %w", key, err)
		}
	}
	return ev, nil
}

// decodeMsgpackFields reads a map (or nil) into ordered fields.
func decodeMsgpackFields(dec *msgpack.Decoder) ([]events.Field, error) {
	n, err := dec.DecodeMapLen()
	if err != nil || n < 0 {
		return nil, err
	}
	fields := make([]events.Field, 0, n)
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := decodeMsgpackValue(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields = append(fields, events.Field{Name: key, Value: v})
	}
	return fields, nil
}

func decodeMsgpackValue(dec *msgpack.Decoder) (any, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		return decodeMsgpackFields(dec)
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := decodeMsgpackValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}
	// Widens integers to int64/uint64 and float32 to float64.
	return dec.DecodeInterfaceLoose()
}

// MsgpackWriter encodes events in the layout MsgpackReader reads.
type MsgpackWriter struct {
	bw  *bufio.Writer
	enc *msgpack.Encoder
	c   io.Closer
}

// NewMsgpackWriter returns a writer over w. If w is an io.Closer it is
// closed by Close.
func NewMsgpackWriter(w io.Writer) *MsgpackWriter {
	bw := bufio.NewWriter(w)
	mw := &MsgpackWriter{bw: bw, enc: msgpack.NewEncoder(bw)}
	if c, ok := w.(io.Closer); ok {
		mw.c = c
	}
	return mw
}

// Write appends one event.
func (w *MsgpackWriter) Write(ev events.TraceEvent) error {
	if err := w.enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := w.enc.EncodeString("name"); err != nil {
		return err
	}
	if err := w.enc.EncodeString(ev.Name); err != nil {
		return err
	}
	if err := w.enc.EncodeString("timestamp_ns"); err != nil {
		return err
	}
	if err := w.enc.EncodeUint64(ev.Timestamp); err != nil {
		return err
	}
	if err := w.enc.EncodeString("fields"); err != nil {
		return err
	}
	return encodeMsgpackFields(w.enc, ev.Fields)
}

// Close flushes buffered output and closes the underlying writer.
func (w *MsgpackWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}

func encodeMsgpackFields(enc *msgpack.Encoder, fields []events.Field) error {
	if err := enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.Name); err != nil {
			return err
		}
		if err := encodeMsgpackValue(enc, f.Value); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func encodeMsgpackValue(enc *msgpack.Encoder, v any) error {
	switch x := v.(type) {
	case []events.Field:
		return encodeMsgpackFields(enc, x)
	case []any:
		if err := enc.EncodeArrayLen(len(x)); err != nil {
			return err
		}
		for _, item := range x {
			if err := encodeMsgpackValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.Encode(v)
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
