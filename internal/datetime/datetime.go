// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package datetime

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateTime is a UTC instant with a precision unit. The instant is always
// truncated to the start of its unit.
type DateTime struct {
	t    time.Time
	unit Unit
}

// layouts maps accepted input layouts to the unit they imply. Order matters:
// the first layout that parses wins.
var layouts = []struct {
	layout string
	unit   Unit
}{
	{time.RFC3339, Second},
	{"2006-01-02T15:04:05", Second},
	{"2006-01-02 15:04:05", Second},
	{"2006-01-02T15:04", Minute},
	{"2006-01-02 15:04", Minute},
	{"2006-01-02T15", Hour},
	{"2006-01-02", Day},
	{"2006-01", Month},
	{"2006", Year},
}

// New returns t truncated to unit u.
func New(t time.Time, u Unit) DateTime {
	return DateTime{t: truncate(t.UTC(), u), unit: u}
}

// Date returns a day-precision DateTime.
func Date(year int, month time.Month, day int) DateTime {
	return New(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Day)
}

// Parse parses a datetime string. The precision unit is derived from the
// layout, e.g. "2020-01" has month and "2020-01-01T10:30" minute precision.
func Parse(s string) (DateTime, error) {
	in := strings.TrimSpace(s)
	for _, l := range layouts {
		t, err := time.Parse(l.layout, in)
		if err == nil {
			return New(t, l.unit), nil
		}
	}
	return DateTime{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, s)
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant initialization.
func MustParse(s string) DateTime {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func truncate(t time.Time, u Unit) time.Time {
	switch u {
	case Year:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Week, Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Hour:
		return t.Truncate(time.Hour)
	case Minute:
		return t.Truncate(time.Minute)
	default:
		return t.Truncate(time.Second)
	}
}

// Time returns the underlying instant.
func (d DateTime) Time() time.Time { return d.t }

// Unit returns the precision unit.
func (d DateTime) Unit() Unit { return d.unit }

// IsZero reports whether d is the zero DateTime.
func (d DateTime) IsZero() bool { return d.t.IsZero() }

// WithUnit returns d with a different precision. Switching to a coarser unit
// truncates the instant.
func (d DateTime) WithUnit(u Unit) DateTime {
	return New(d.t, u)
}

// Add returns d shifted by dur. The result keeps the precision of d.
func (d DateTime) Add(dur Duration) DateTime {
	n := int(dur.Interval)
	var t time.Time
	switch dur.Unit {
	case Year:
		t = d.t.AddDate(n, 0, 0)
	case Month:
		t = d.t.AddDate(0, n, 0)
	case Week:
		t = d.t.AddDate(0, 0, 7*n)
	case Day:
		t = d.t.AddDate(0, 0, n)
	default:
		t = d.t.Add(time.Duration(int64(n)*dur.Unit.seconds()) * time.Second)
	}
	return New(t, d.unit)
}

// Sub returns the duration d - o in the unit of d, rounded towards negative
// infinity. Week precision is measured in days.
func (d DateTime) Sub(o DateTime) Duration {
	u := d.unit
	if u == Week {
		u = Day
	}
	a := truncate(d.t, u)
	b := truncate(o.t, u)

	switch u {
	case Year:
		return Duration{Interval: int32(a.Year() - b.Year()), Unit: Year}
	case Month:
		m := (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
		return Duration{Interval: int32(m), Unit: Month}
	default:
		secs := a.Sub(b).Seconds()
		n := math.Floor(secs / float64(u.seconds()))
		return Duration{Interval: int32(n), Unit: u}
	}
}

// Before reports whether d is before o.
func (d DateTime) Before(o DateTime) bool { return d.t.Before(o.t) }

// After reports whether d is after o.
func (d DateTime) After(o DateTime) bool { return d.t.After(o.t) }

// Equal reports whether both instants are equal, regardless of precision.
func (d DateTime) Equal(o DateTime) bool { return d.t.Equal(o.t) }

// String formats d at its precision.
func (d DateTime) String() string {
	switch d.unit {
	case Year:
		return d.t.Format("2006")
	case Month:
		return d.t.Format("2006-01")
	case Week, Day:
		return d.t.Format("2006-01-02")
	case Hour:
		return d.t.Format("2006-01-02T15")
	case Minute:
		return d.t.Format("2006-01-02T15:04")
	default:
		return d.t.Format("2006-01-02T15:04:05")
	}
}

// Format formats d at the given precision, independent of its own unit.
func (d DateTime) Format(u Unit) string {
	return DateTime{t: d.t, unit: u}.String()
}

// MarshalText implements encoding.TextMarshaler.
func (d DateTime) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DateTime) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
