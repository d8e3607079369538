package render

import (
	"strconv"
	"time"
)

// Bucket is the unit chosen to display the time between two events.
type Bucket int

const (
	BucketNanoseconds Bucket = iota
	BucketMicroseconds
	BucketMilliseconds
	BucketSeconds
)

// Unit returns the display symbol for the bucket.
func (b Bucket) Unit() string {
	switch b {
	case BucketSeconds:
		return "s"
	case BucketMilliseconds:
		return "ms"
	case BucketMicroseconds:
		return "μs"
	default:
		return "ns"
	}
}

// Scale returns the number of nanoseconds in one bucket unit.
func (b Bucket) Scale() float64 {
	switch b {
	case BucketSeconds:
		return 1e9
	case BucketMilliseconds:
		return 1e6
	case BucketMicroseconds:
		return 1e3
	default:
		return 1
	}
}

// Severity is the color class attached to a delta.
type Severity int

const (
	SeverityNone   Severity = iota
	SeverityLow             // blue
	SeverityMedium          // yellow
	SeverityHigh            // red
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "none"
	}
}

// Delta is the elapsed time between two rendered events, bucketed for
// display.
type Delta struct {
	Nanos     uint64
	Bucket    Bucket
	Magnitude float64
	Severity  Severity

	// Regressed is set when the current timestamp is older than the last
	// one. Nanos is clamped to zero in that case.
	Regressed bool
}

// ComputeDelta buckets cur-last. Thresholds are strict and checked from
// seconds down: > 1s is red, > 1ms yellow, > 1μs blue, anything else
// uncolored nanoseconds. A timestamp older than last yields a zero delta
// with Regressed set instead of an unsigned underflow.
func ComputeDelta(last, cur uint64) Delta {
	if cur < last {
		return Delta{Bucket: BucketNanoseconds, Regressed: true}
	}

	d := Delta{Nanos: cur - last}
	switch {
	case d.Nanos > uint64(time.Second):
		d.Bucket, d.Severity = BucketSeconds, SeverityHigh
	case d.Nanos > uint64(time.Millisecond):
		d.Bucket, d.Severity = BucketMilliseconds, SeverityMedium
	case d.Nanos > uint64(time.Microsecond):
		d.Bucket, d.Severity = BucketMicroseconds, SeverityLow
	default:
		d.Bucket, d.Severity = BucketNanoseconds, SeverityNone
	}
	d.Magnitude = float64(d.Nanos) / d.Bucket.Scale()
	return d
}

// String renders the delta as "+{magnitude} {unit}", e.g. "+2.5 s".
func (d Delta) String() string {
	var mag string
	if d.Bucket == BucketNanoseconds {
		mag = strconv.FormatUint(d.Nanos, 10)
	} else {
		mag = strconv.FormatFloat(d.Magnitude, 'f', -1, 64)
	}
	return "+" + mag + " " + d.Bucket.Unit()
}

// absoluteLayout is used for the first rendered event.
const absoluteLayout = "2006-01-02 15:04:05.000000"

// FormatAbsolute renders a nanosecond Unix timestamp as calendar time in loc.
func FormatAbsolute(ts uint64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	const perSecond = uint64(time.Second)
	t := time.Unix(int64(ts/perSecond), int64(ts%perSecond))
	return t.In(loc).Format(absoluteLayout)
}
