// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package datetime

import (
	"fmt"
	"strings"
)

// Unit is the precision of a DateTime or the unit of a Duration.
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	Day
	Week
	Month
	Year
)

// String returns the lower case unit name.
func (u Unit) String() string {
	switch u {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return "unknown"
	}
}

// ParseUnit parses a unit name. Plural forms are accepted.
func ParseUnit(s string) (Unit, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "second", "sec":
		return Second, nil
	case "minute", "min":
		return Minute, nil
	case "hour":
		return Hour, nil
	case "day":
		return Day, nil
	case "week":
		return Week, nil
	case "month":
		return Month, nil
	case "year":
		return Year, nil
	}
	return Second, fmt.Errorf("%w: %q", ErrInvalidUnit, s)
}

// calendar reports whether the unit has a variable length (month, year).
func (u Unit) calendar() bool {
	return u == Month || u == Year
}

// seconds returns the fixed length of a non-calendar unit.
func (u Unit) seconds() int64 {
	switch u {
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return 86400
	case Week:
		return 7 * 86400
	default:
		return 1
	}
}

// months returns the length of a calendar unit in months.
func (u Unit) months() int64 {
	if u == Year {
		return 12
	}
	return 1
}
