package events

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// TraceEvent is one record pulled from a trace source. Fields keep the order
// in which the tracer emitted them.
type TraceEvent struct {
	Name      string  // event family, e.g. "syscall_entry_openat"
	Timestamp uint64  // nanoseconds since the Unix epoch
	Fields    []Field // payload, in emission order
}

// Field is a single named payload value. Value holds one of string, bool,
// a signed or unsigned integer, float64, []byte, or []Field for nested
// structures such as debug_info.
type Field struct {
	Name  string
	Value any
}

// Field returns the top-level payload value with the given name.
func (e TraceEvent) Field(name string) (any, bool) {
	return lookupFields(e.Fields, name)
}

// Lookup resolves a dotted path ("debug_info.func") through nested []Field
// values.
func (e TraceEvent) Lookup(path string) (any, bool) {
	fields := e.Fields
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := lookupFields(fields, part)
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		nested, ok := v.([]Field)
		if !ok {
			return nil, false
		}
		fields = nested
	}
	return nil, false
}

// String returns the payload value at path rendered as text, or "" if absent.
func (e TraceEvent) String(path string) string {
	v, ok := e.Lookup(path)
	if !ok {
		return ""
	}
	return FormatValue(v)
}

func lookupFields(fields []Field, name string) (any, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// FormatValue renders a payload value the way it appears in the stack view.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []Field:
		var sb strings.Builder
		sb.WriteString("{")
		for i, f := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(" = ")
			sb.WriteString(FormatValue(f.Value))
		}
		sb.WriteString("}")
		return sb.String()
	default:
		return fmt.Sprint(x)
	}
}

// AsInt64 converts an integer-valued payload to int64. Floats with no
// fractional part and numeric strings are accepted too.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		n, err := safecast.Conv[int64](x)
		return n, err == nil
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		n, err := safecast.Conv[int64](x)
		return n, err == nil
	case float64:
		n, err := safecast.Convert[int64](x)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// AsUint64 converts a non-negative integer payload to uint64.
func AsUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case string:
		n, err := strconv.ParseUint(x, 10, 64)
		return n, err == nil
	}
	n, ok := AsInt64(v)
	if !ok {
		return 0, false
	}
	u, err := safecast.Conv[uint64](n)
	return u, err == nil
}
