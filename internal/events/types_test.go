package events

import (
	"math"
	"testing"
)

func TestTraceEvent_Lookup(t *testing.T) {
	e := TraceEvent{
		Name: FamilyNativeEntry,
		Fields: []Field{
			{Name: "addr", Value: uint64(0x401000)},
			{Name: "debug_info", Value: []Field{
				{Name: "bin", Value: "app"},
				{Name: "func", Value: "main+0"},
			}},
		},
	}

	if v, ok := e.Lookup("debug_info.func"); !ok || v != "main+0" {
		t.Errorf("Lookup(debug_info.func) = %v, %v", v, ok)
	}
	if _, ok := e.Lookup("debug_info.missing"); ok {
		t.Error("expected missing nested field")
	}
	if _, ok := e.Lookup("addr.func"); ok {
		t.Error("expected lookup through a scalar to fail")
	}
	if got := e.String("debug_info.bin"); got != "app" {
		t.Errorf("String(debug_info.bin) = %q", got)
	}
	if got := e.String("nope"); got != "" {
		t.Errorf("String(nope) = %q, want empty", got)
	}
	if v, ok := e.Field("addr"); !ok || v != uint64(0x401000) {
		t.Errorf("Field(addr) = %v, %v", v, ok)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "/etc/passwd", "/etc/passwd"},
		{"int", int64(-2), "-2"},
		{"uint", uint64(42), "42"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"bytes", []byte("abc"), "abc"},
		{"nil", nil, ""},
		{"nested", []Field{{Name: "a", Value: int64(1)}, {Name: "b", Value: "x"}}, "{a = 1, b = x}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(-9), -9, true},
		{int32(7), 7, true},
		{uint8(3), 3, true},
		{uint64(12), 12, true},
		{uint64(math.MaxUint64), 0, false},
		{float64(4), 4, true},
		{float64(4.5), 0, false},
		{"-1", -1, true},
		{"x", 0, false},
		{[]Field{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsInt64(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("AsInt64(%#v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAsUint64(t *testing.T) {
	if v, ok := AsUint64(uint64(math.MaxUint64)); !ok || v != math.MaxUint64 {
		t.Errorf("AsUint64(max) = %d, %v", v, ok)
	}
	if _, ok := AsUint64(int64(-1)); ok {
		t.Error("negative values must not convert")
	}
	if v, ok := AsUint64("1500"); !ok || v != 1500 {
		t.Errorf("AsUint64(\"1500\") = %d, %v", v, ok)
	}
}
