// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package datetime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidUnit is returned for unknown unit names.
	ErrInvalidUnit = errors.New("invalid datetime unit")

	// ErrInvalidDuration is returned for malformed ISO-8601 durations.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidDateTime is returned for unparseable datetime strings.
	ErrInvalidDateTime = errors.New("invalid datetime")
)

// Average Gregorian month and year lengths, used only when durations of
// calendar and fixed units have to be compared.
const (
	secondsPerMonth = 2629746
	secondsPerYear  = 31556952
)

// Duration is an integer number of datetime units.
type Duration struct {
	Interval int32
	Unit     Unit
}

// Seconds returns a duration of n seconds.
func Seconds(n int32) Duration { return Duration{Interval: n, Unit: Second} }

// Minutes returns a duration of n minutes.
func Minutes(n int32) Duration { return Duration{Interval: n, Unit: Minute} }

// Hours returns a duration of n hours.
func Hours(n int32) Duration { return Duration{Interval: n, Unit: Hour} }

// Days returns a duration of n days.
func Days(n int32) Duration { return Duration{Interval: n, Unit: Day} }

// Weeks returns a duration of n weeks.
func Weeks(n int32) Duration { return Duration{Interval: n, Unit: Week} }

// Months returns a duration of n months.
func Months(n int32) Duration { return Duration{Interval: n, Unit: Month} }

// Years returns a duration of n years.
func Years(n int32) Duration { return Duration{Interval: n, Unit: Year} }

// IsZero reports whether the duration has no length.
func (d Duration) IsZero() bool {
	return d.Interval == 0
}

// Normalize converts weeks to days and leaves all other units unchanged.
func (d Duration) Normalize() Duration {
	if d.Unit == Week {
		return Duration{Interval: d.Interval * 7, Unit: Day}
	}
	return d
}

// Mul returns the duration multiplied by n.
func (d Duration) Mul(n int32) Duration {
	return Duration{Interval: d.Interval * n, Unit: d.Unit}
}

// Add returns d + n units of d.
func (d Duration) Add(n int32) Duration {
	return Duration{Interval: d.Interval + n, Unit: d.Unit}
}

// ConvertTo expresses d in unit u. The conversion is exact only between
// fixed units (second..week) or between calendar units (month, year), and
// only if the result is integral; ok is false otherwise.
func (d Duration) ConvertTo(u Unit) (Duration, bool) {
	if d.Unit == u {
		return d, true
	}
	if d.Unit.calendar() != u.calendar() {
		return Duration{}, false
	}
	var from, to int64
	if u.calendar() {
		from, to = d.Unit.months(), u.months()
	} else {
		from, to = d.Unit.seconds(), u.seconds()
	}
	total := int64(d.Interval) * from
	if total%to != 0 {
		return Duration{}, false
	}
	return Duration{Interval: int32(total / to), Unit: u}, true
}

// approxSeconds returns the length in seconds, using average month and year
// lengths for calendar units.
func (d Duration) approxSeconds() int64 {
	switch d.Unit {
	case Month:
		return int64(d.Interval) * secondsPerMonth
	case Year:
		return int64(d.Interval) * secondsPerYear
	default:
		return int64(d.Interval) * d.Unit.seconds()
	}
}

// common returns both durations expressed in one unit. Durations of the same
// group use the finer unit; mixed groups fall back to approximate seconds.
func common(a, b Duration) (int64, int64) {
	if a.Unit.calendar() == b.Unit.calendar() {
		u := a.Unit
		if b.Unit < u {
			u = b.Unit
		}
		ca, _ := a.ConvertTo(u)
		cb, _ := b.ConvertTo(u)
		return int64(ca.Interval), int64(cb.Interval)
	}
	return a.approxSeconds(), b.approxSeconds()
}

// Div returns the number of whole b durations in a (integer division).
func Div(a, b Duration) int32 {
	x, y := common(a, b)
	if y == 0 {
		return 0
	}
	return int32(x / y)
}

// Mod returns the remainder of a divided by b, expressed in the finer of
// both units.
func Mod(a, b Duration) int32 {
	x, y := common(a, b)
	if y == 0 {
		return 0
	}
	return int32(x % y)
}

// Equal reports whether both durations have the same length. 7 days equal 1
// week and 12 months equal 1 year.
func (d Duration) Equal(o Duration) bool {
	if d.Unit.calendar() != o.Unit.calendar() {
		return false
	}
	x, y := common(d, o)
	return x == y
}

// String returns the ISO-8601 representation, e.g. P1D, P3M or PT6H.
func (d Duration) String() string {
	n := strconv.FormatInt(int64(d.Interval), 10)
	switch d.Unit {
	case Year:
		return "P" + n + "Y"
	case Month:
		return "P" + n + "M"
	case Week:
		return "P" + n + "W"
	case Day:
		return "P" + n + "D"
	case Hour:
		return "PT" + n + "H"
	case Minute:
		return "PT" + n + "M"
	default:
		return "PT" + n + "S"
	}
}

// ParseDuration parses an ISO-8601 duration. Components of the same group
// are summed up in the finest unit given, e.g. P1Y6M is 18 months and
// PT1H30M is 90 minutes. Mixing calendar components (Y, M) with fixed ones
// (W, D, H, M, S) is rejected because it has no single-unit representation.
func ParseDuration(s string) (Duration, error) {
	in := strings.ToUpper(strings.TrimSpace(s))
	if len(in) < 3 || in[0] != 'P' {
		return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var (
		out       Duration
		found     bool
		inTime    bool
		timeParts int
		calendar  bool
		fixed     bool
		numberBuf strings.Builder
	)
	add := func(n int64, u Unit) error {
		if u.calendar() {
			calendar = true
		} else {
			fixed = true
		}
		if calendar && fixed {
			return fmt.Errorf("%w: %q mixes calendar and fixed units", ErrInvalidDuration, s)
		}
		part := Duration{Interval: int32(n), Unit: u}
		if !found {
			out = part
			found = true
			return nil
		}
		target := out.Unit
		if u < target {
			target = u
		}
		a, _ := out.ConvertTo(target)
		b, _ := part.ConvertTo(target)
		out = Duration{Interval: a.Interval + b.Interval, Unit: target}
		return nil
	}

	for _, r := range in[1:] {
		switch {
		case r >= '0' && r <= '9':
			numberBuf.WriteRune(r)
			continue
		case r == 'T':
			if numberBuf.Len() > 0 || inTime {
				return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
			}
			inTime = true
			continue
		}
		if numberBuf.Len() == 0 {
			return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		n, err := strconv.ParseInt(numberBuf.String(), 10, 32)
		if err != nil {
			return Duration{}, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
		}
		numberBuf.Reset()

		var u Unit
		switch {
		case !inTime && r == 'Y':
			u = Year
		case !inTime && r == 'M':
			u = Month
		case !inTime && r == 'W':
			u = Week
		case !inTime && r == 'D':
			u = Day
		case inTime && r == 'H':
			u = Hour
		case inTime && r == 'M':
			u = Minute
		case inTime && r == 'S':
			u = Second
		default:
			return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		if inTime {
			timeParts++
		}
		if err := add(n, u); err != nil {
			return Duration{}, err
		}
	}
	if numberBuf.Len() > 0 || !found || (inTime && timeParts == 0) {
		return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return out, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
