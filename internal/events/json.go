package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrNoName is returned when a serialized event carries no family name.
var ErrNoName = errors.New("event has no name")

// MarshalJSON encodes the event as
// {"name": ..., "timestamp_ns": ..., "fields": {...}} with fields kept in
// payload order.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	name, err := json.Marshal(e.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	buf.WriteString(`,"timestamp_ns":`)
	buf.WriteString(strconv.FormatUint(e.Timestamp, 10))
	buf.WriteString(`,"fields":`)
	if err := writeFieldsJSON(&buf, e.Fields); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the layout written by MarshalJSON. Integer values
// decode to int64 (uint64 when they overflow it), other numbers to float64
// and nested objects to []Field.
func (e *TraceEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Timestamp json.Number     `json:"timestamp_ns"`
		Fields    json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return ErrNoName
	}

	var ts uint64
	if raw.Timestamp != "" {
		n, err := strconv.ParseUint(raw.Timestamp.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp_ns: %w", err)
		}
		ts = n
	}

	fields, err := UnmarshalFieldsJSON(raw.Fields)
	if err != nil {
		return fmt.Errorf("fields: %w", err)
	}

	*e = TraceEvent{Name: raw.Name, Timestamp: ts, Fields: fields}
	return nil
}

// MarshalFieldsJSON encodes fields as a JSON object in payload order.
func MarshalFieldsJSON(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFieldsJSON(&buf, fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalFieldsJSON decodes a JSON object into ordered fields. Empty input
// and null yield no fields.
func UnmarshalFieldsJSON(data []byte) ([]Field, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	return readObject(dec)
}

func writeFieldsJSON(buf *bytes.Buffer, fields []Field) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeValueJSON(buf, f.Value); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValueJSON(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case []Field:
		return writeFieldsJSON(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValueJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case []byte:
		// Byte payloads are textual in practice; keep them readable.
		v = string(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// readObject consumes key/value pairs up to and including the closing '}'.
func readObject(dec *json.Decoder) ([]Field, error) {
	var fields []Field
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if tok == json.Delim('}') {
			return fields, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		v, err := readValue(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields = append(fields, Field{Name: key, Value: v})
	}
}

func readArray(dec *json.Decoder) ([]any, error) {
	items := []any{}
	for dec.More() {
		v, err := readValue(dec)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if _, err := dec.Token(); err != nil { // ']'
		return nil, unexpectedEOF(err)
	}
	return items, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	switch x := tok.(type) {
	case json.Delim:
		switch x {
		case '{':
			return readObject(dec)
		case '[':
			return readArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %v", x)
	case json.Number:
		return parseNumber(x), nil
	default:
		// string, bool or nil
		return x, nil
	}
}

func parseNumber(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
