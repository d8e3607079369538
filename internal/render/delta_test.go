package render

import (
	"testing"
	"time"
)

func TestComputeDelta_Buckets(t *testing.T) {
	tests := []struct {
		name      string
		delta     uint64
		bucket    Bucket
		magnitude float64
		severity  Severity
		text      string
	}{
		{"seconds", 2_500_000_000, BucketSeconds, 2.5, SeverityHigh, "+2.5 s"},
		{"milliseconds", 1_500_000, BucketMilliseconds, 1.5, SeverityMedium, "+1.5 ms"},
		{"microseconds", 50_000, BucketMicroseconds, 50, SeverityLow, "+50 μs"},
		{"nanoseconds", 500, BucketNanoseconds, 500, SeverityNone, "+500 ns"},
		{"zero", 0, BucketNanoseconds, 0, SeverityNone, "+0 ns"},
		// Thresholds are strict: exactly one unit stays in the smaller bucket.
		{"exactly one second", 1_000_000_000, BucketMilliseconds, 1000, SeverityMedium, "+1000 ms"},
		{"exactly one millisecond", 1_000_000, BucketMicroseconds, 1000, SeverityLow, "+1000 μs"},
		{"exactly one microsecond", 1_000, BucketNanoseconds, 1000, SeverityNone, "+1000 ns"},
		{"half a millisecond", 500_000, BucketMicroseconds, 500, SeverityLow, "+500 μs"},
		{"just over a second", 1_000_000_001, BucketSeconds, 1.000000001, SeverityHigh, "+1.000000001 s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const base = uint64(1_700_000_000_000_000_000)
			d := ComputeDelta(base, base+tt.delta)
			if d.Bucket != tt.bucket {
				t.Errorf("bucket = %v, want %v", d.Bucket, tt.bucket)
			}
			if d.Magnitude != tt.magnitude {
				t.Errorf("magnitude = %v, want %v", d.Magnitude, tt.magnitude)
			}
			if d.Severity != tt.severity {
				t.Errorf("severity = %v, want %v", d.Severity, tt.severity)
			}
			if d.Regressed {
				t.Error("unexpected regression flag")
			}
			if got := d.String(); got != tt.text {
				t.Errorf("String() = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestComputeDelta_Regression(t *testing.T) {
	d := ComputeDelta(2_000, 1_000)
	if !d.Regressed {
		t.Fatal("expected Regressed for a timestamp going backwards")
	}
	if d.Nanos != 0 || d.Bucket != BucketNanoseconds || d.Severity != SeverityNone {
		t.Errorf("regressed delta should clamp to an uncolored zero, got %+v", d)
	}
	if d.String() != "+0 ns" {
		t.Errorf("String() = %q, want +0 ns", d.String())
	}
}

func TestComputeDelta_Pure(t *testing.T) {
	a := ComputeDelta(100, 5_000_100)
	b := ComputeDelta(100, 5_000_100)
	if a != b {
		t.Errorf("ComputeDelta is not deterministic: %+v vs %+v", a, b)
	}
}

func TestBucketUnits(t *testing.T) {
	want := map[Bucket]string{
		BucketSeconds:      "s",
		BucketMilliseconds: "ms",
		BucketMicroseconds: "μs",
		BucketNanoseconds:  "ns",
	}
	for b, unit := range want {
		if b.Unit() != unit {
			t.Errorf("%d.Unit() = %q, want %q", b, b.Unit(), unit)
		}
	}
}

func TestFormatAbsolute(t *testing.T) {
	ts := uint64(time.Date(2024, 3, 9, 14, 5, 6, 123456789, time.UTC).UnixNano())

	if got := FormatAbsolute(ts, time.UTC); got != "2024-03-09 14:05:06.123456" {
		t.Errorf("FormatAbsolute UTC = %q", got)
	}

	tokyo := time.FixedZone("JST", 9*3600)
	if got := FormatAbsolute(ts, tokyo); got != "2024-03-09 23:05:06.123456" {
		t.Errorf("FormatAbsolute JST = %q", got)
	}

	if got := FormatAbsolute(1000, time.UTC); got != "1970-01-01 00:00:00.000001" {
		t.Errorf("FormatAbsolute(1000) = %q", got)
	}
}
