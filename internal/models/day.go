package models

import (
	"fmt"
	"time"
)

// dayLayout is the canonical serialized form of a Day.
const dayLayout = "2006-01-02"

// Day identifies one calendar day in the dataset's reference timezone.
// It is a value type, comparable and usable as a map key, and carries no
// location of its own: the location is applied once when a Day is derived
// from a timestamp or converted back to one.
type Day struct {
	year  int
	month time.Month
	day   int
}

// NewDay creates a Day from calendar components. Out-of-range components
// are normalized the same way time.Date normalizes them.
func NewDay(year int, month time.Month, day int) Day {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Day{year: t.Year(), month: t.Month(), day: t.Day()}
}

// DayOf truncates a timestamp to the calendar day it falls on in loc.
// All candles in one dataset must be truncated with the same location or
// the (instrument, day) key silently drifts.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Day{year: local.Year(), month: local.Month(), day: local.Day()}
}

// ParseDay parses the canonical YYYY-MM-DD form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day{year: t.Year(), month: t.Month(), day: t.Day()}, nil
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	t := time.Date(d.year, d.month, d.day+n, 0, 0, 0, 0, time.UTC)
	return Day{year: t.Year(), month: t.Month(), day: t.Day()}
}

// Compare orders days chronologically: -1 if d is before o, 0 if equal,
// +1 if d is after o.
func (d Day) Compare(o Day) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

// Before reports whether d is chronologically before o.
func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }

// After reports whether d is chronologically after o.
func (d Day) After(o Day) bool { return d.Compare(o) > 0 }

// StartOfDay returns midnight of d in loc.
func (d Day) StartOfDay(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
}

// EpochMillis returns midnight of d in loc as epoch milliseconds, the
// convention exchange candle endpoints use for "since" parameters.
func (d Day) EpochMillis(loc *time.Location) int64 {
	return d.StartOfDay(loc).UnixMilli()
}

// String returns the canonical YYYY-MM-DD form. This is the only form a
// Day takes at the storage boundary.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
