// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package spacetime

import (
	"fmt"

	"github.com/tomtom215/cubeflow/internal/datetime"
	"github.com/tomtom215/cubeflow/internal/logging"
)

// Axis names one dimension of the grid.
type Axis string

const (
	AxisT Axis = "t"
	AxisY Axis = "y"
	AxisX Axis = "x"
)

// Adjustment records how a setter changed the extent of a Reference to keep
// the grid aligned. The zero value means nothing changed.
type Adjustment struct {
	Axis Axis

	// Widen is the amount added to both ends of a spatial axis.
	Widen float64

	// OldEnd and NewEnd are the previous and new t1 for temporal changes.
	OldEnd datetime.DateTime
	NewEnd datetime.DateTime
}

// IsZero reports whether the adjustment is empty.
func (a Adjustment) IsZero() bool {
	return a.Axis == ""
}

func (a Adjustment) String() string {
	switch a.Axis {
	case "":
		return "aligned"
	case AxisT:
		return fmt.Sprintf("t1 extended from %s to %s", a.OldEnd, a.NewEnd)
	default:
		return fmt.Sprintf("%s extent enlarged by %g at both sides", a.Axis, a.Widen)
	}
}

// report logs a non-empty adjustment and returns it unchanged.
func report(a Adjustment) Adjustment {
	if a.IsZero() {
		return a
	}
	ev := logging.Info().Str("component", "spacetime").Str("axis", string(a.Axis))
	if a.Axis == AxisT {
		ev = ev.Str("old_t1", a.OldEnd.String()).Str("new_t1", a.NewEnd.String())
	} else {
		ev = ev.Float64("widen", a.Widen)
	}
	ev.Msg("Grid extent does not align with cell size, extent adjusted")
	return a
}
