// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package spacetime

import (
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/cubeflow/internal/datetime"
)

var (
	// ErrInvalidGrid is returned for empty grids or non-positive cell sizes.
	ErrInvalidGrid = errors.New("invalid grid")

	// ErrInvalidWindow is returned when a window has no positive area.
	ErrInvalidWindow = errors.New("invalid spatial window")

	// ErrInvalidExtent is returned when t1 is before t0.
	ErrInvalidExtent = errors.New("invalid temporal extent")
)

// Window is a rectangular spatial extent.
type Window struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Top    float64 `json:"top"`
}

// Width returns Right - Left.
func (w Window) Width() float64 { return w.Right - w.Left }

// Height returns Top - Bottom.
func (w Window) Height() float64 { return w.Top - w.Bottom }

// Valid reports whether the window has a positive, finite area.
func (w Window) Valid() bool {
	for _, v := range []float64{w.Left, w.Right, w.Bottom, w.Top} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return w.Width() > 0 && w.Height() > 0
}

// Index is an integer cube coordinate.
type Index struct {
	T, Y, X uint32
}

// Point is a real-world coordinate in the SRS of a Reference.
type Point struct {
	T    datetime.DateTime
	X, Y float64
}

// Reference is the spacetime grid of a cube. The zero value is not usable;
// construct one with NewReference. Reference has value semantics: assigning
// or passing it copies the whole grid.
type Reference struct {
	srs    string
	win    Window
	nx, ny uint32
	t0, t1 datetime.DateTime
	dt     datetime.Duration
}

// NewReference validates and returns a grid. t0 and t1 take the unit of dt.
// If the temporal extent is not a multiple of dt, t1 is extended as with
// SetDT and the change is logged.
func NewReference(srs string, win Window, nx, ny uint32, t0, t1 datetime.DateTime, dt datetime.Duration) (Reference, error) {
	if !win.Valid() {
		return Reference{}, fmt.Errorf("%w: %+v", ErrInvalidWindow, win)
	}
	if nx == 0 || ny == 0 {
		return Reference{}, fmt.Errorf("%w: nx=%d ny=%d", ErrInvalidGrid, nx, ny)
	}
	if t1.Before(t0) {
		return Reference{}, fmt.Errorf("%w: t1 %s before t0 %s", ErrInvalidExtent, t1, t0)
	}
	r := Reference{srs: srs, win: win, nx: nx, ny: ny, t0: t0, t1: t1}
	if _, err := r.SetDT(dt); err != nil {
		return Reference{}, err
	}
	return r, nil
}

// Copy returns an independent copy of r.
func (r Reference) Copy() Reference { return r }

// SRS returns the spatial reference system identifier or WKT.
func (r Reference) SRS() string { return r.srs }

// SetSRS replaces the spatial reference system without touching the window.
func (r *Reference) SetSRS(srs string) { r.srs = srs }

// Window returns the spatial extent.
func (r Reference) Window() Window { return r.win }

// SetWindow replaces the spatial extent and keeps nx and ny.
func (r *Reference) SetWindow(w Window) error {
	if !w.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidWindow, w)
	}
	r.win = w
	return nil
}

// NX returns the number of cells in x direction.
func (r Reference) NX() uint32 { return r.nx }

// NY returns the number of cells in y direction.
func (r Reference) NY() uint32 { return r.ny }

// SetNX sets the number of cells in x direction. The window is kept, so dx
// changes.
func (r *Reference) SetNX(n uint32) error {
	if n == 0 {
		return fmt.Errorf("%w: nx must be positive", ErrInvalidGrid)
	}
	r.nx = n
	return nil
}

// SetNY sets the number of cells in y direction.
func (r *Reference) SetNY(n uint32) error {
	if n == 0 {
		return fmt.Errorf("%w: ny must be positive", ErrInvalidGrid)
	}
	r.ny = n
	return nil
}

// DX returns the cell width.
func (r Reference) DX() float64 { return r.win.Width() / float64(r.nx) }

// DY returns the cell height.
func (r Reference) DY() float64 { return r.win.Height() / float64(r.ny) }

// SetDX sets the cell width. nx becomes the number of cells needed to cover
// the window; if that does not tile the window exactly, the window is widened
// symmetrically so its center stays fixed.
func (r *Reference) SetDX(dx float64) (Adjustment, error) {
	n, widen, err := align(r.win.Width(), dx)
	if err != nil {
		return Adjustment{}, fmt.Errorf("dx: %w", err)
	}
	r.nx = n
	if widen == 0 {
		return Adjustment{}, nil
	}
	r.win.Left -= widen
	r.win.Right += widen
	return report(Adjustment{Axis: AxisX, Widen: widen}), nil
}

// SetDY sets the cell height, widening the window at top and bottom when
// needed.
func (r *Reference) SetDY(dy float64) (Adjustment, error) {
	n, widen, err := align(r.win.Height(), dy)
	if err != nil {
		return Adjustment{}, fmt.Errorf("dy: %w", err)
	}
	r.ny = n
	if widen == 0 {
		return Adjustment{}, nil
	}
	r.win.Bottom -= widen
	r.win.Top += widen
	return report(Adjustment{Axis: AxisY, Widen: widen}), nil
}

// align returns the number of cells of size d covering extent and the amount
// the extent must grow at each side to be tiled exactly.
func align(extent, d float64) (uint32, float64, error) {
	if !(d > 0) || math.IsInf(d, 0) {
		return 0, 0, fmt.Errorf("%w: cell size %g", ErrInvalidGrid, d)
	}
	ratio := extent / d
	// Ratios within rounding noise of an integer count as exact.
	if rounded := math.Round(ratio); math.Abs(ratio-rounded) < 1e-9*math.Max(1, rounded) {
		ratio = rounded
	}
	n := math.Ceil(ratio)
	if n < 1 {
		n = 1
	}
	if n > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: %g cells", ErrInvalidGrid, n)
	}
	expand := n*d - extent
	if math.Abs(expand) <= 1e-9*math.Max(1, math.Abs(extent)) {
		expand = 0
	}
	return uint32(n), expand / 2, nil
}

// T0 returns the start of the temporal extent.
func (r Reference) T0() datetime.DateTime { return r.t0 }

// T1 returns the end of the temporal extent. t1 lies inside the last cell.
func (r Reference) T1() datetime.DateTime { return r.t1 }

// SetT0 sets the start of the temporal extent at the unit of dt.
func (r *Reference) SetT0(t datetime.DateTime) {
	r.t0 = t.WithUnit(r.dt.Unit)
}

// SetT1 sets the end of the temporal extent at the unit of dt.
func (r *Reference) SetT1(t datetime.DateTime) {
	r.t1 = t.WithUnit(r.dt.Unit)
}

// DT returns the duration of one cell.
func (r Reference) DT() datetime.Duration { return r.dt }

// NT returns the number of cells covering [t0, t1], both inclusive.
func (r Reference) NT() uint32 {
	if r.t1.Equal(r.t0) || r.dt.Interval <= 0 {
		return 1
	}
	d := r.t1.Sub(r.t0).Add(1)
	dt := r.dt.Normalize()
	n := datetime.Div(d, dt)
	if datetime.Mod(d, dt) != 0 {
		n++
	}
	if n < 1 {
		return 1
	}
	return uint32(n)
}

// SetDT sets the duration of one cell. t0 and t1 take the unit of dt. If
// the inclusive extent is not a multiple of dt, t1 moves to the end of the
// last cell.
func (r *Reference) SetDT(dt datetime.Duration) (Adjustment, error) {
	if dt.Interval <= 0 {
		return Adjustment{}, fmt.Errorf("%w: dt %s", ErrInvalidGrid, dt)
	}
	r.dt = dt
	r.t0 = r.t0.WithUnit(dt.Unit)
	r.t1 = r.t1.WithUnit(dt.Unit)

	step := dt.Normalize()
	total := r.t1.Sub(r.t0).Add(1)
	if datetime.Mod(total, step) == 0 {
		return Adjustment{}, nil
	}
	old := r.t1
	cells := datetime.Div(total, step)
	r.t1 = r.t0.Add(step.Mul(cells)).Add(datetime.Duration{Interval: step.Interval - 1, Unit: step.Unit})
	return report(Adjustment{Axis: AxisT, OldEnd: old, NewEnd: r.t1}), nil
}

// SetNT sets the number of cells in time. dt becomes the smallest whole
// duration, in the current unit, with n cells covering the extent. If that
// overshoots, t1 moves to the end of the last cell.
func (r *Reference) SetNT(n uint32) (Adjustment, error) {
	if n == 0 {
		return Adjustment{}, fmt.Errorf("%w: nt must be positive", ErrInvalidGrid)
	}
	unit := r.t0.Unit()
	if r.dt.Interval > 0 {
		unit = r.dt.Normalize().Unit
	}
	if unit == datetime.Week {
		unit = datetime.Day
	}
	r.t0 = r.t0.WithUnit(unit)
	r.t1 = r.t1.WithUnit(unit)

	d := r.t1.Sub(r.t0).Add(1)
	interval := (int64(d.Interval) + int64(n) - 1) / int64(n)
	r.dt = datetime.Duration{Interval: int32(interval), Unit: unit}

	if int64(d.Interval)%int64(n) == 0 {
		return Adjustment{}, nil
	}
	old := r.t1
	r.t1 = r.t0.Add(r.dt.Mul(int32(n))).Add(datetime.Duration{Interval: -1, Unit: unit})
	return report(Adjustment{Axis: AxisT, OldEnd: old, NewEnd: r.t1}), nil
}

// SetDaily sets dt to n days. Like the other shortcuts it does not realign
// t1; use SetDT for that.
func (r *Reference) SetDaily(n int32) { r.setUnit(datetime.Days(n)) }

// SetWeekly sets dt to n weeks.
func (r *Reference) SetWeekly(n int32) { r.setUnit(datetime.Weeks(n)) }

// SetMonthly sets dt to n months.
func (r *Reference) SetMonthly(n int32) { r.setUnit(datetime.Months(n)) }

// SetQuarterly sets dt to 3n months.
func (r *Reference) SetQuarterly(n int32) { r.setUnit(datetime.Months(3 * n)) }

// SetYearly sets dt to n years.
func (r *Reference) SetYearly(n int32) { r.setUnit(datetime.Years(n)) }

func (r *Reference) setUnit(dt datetime.Duration) {
	if dt.Interval < 1 {
		dt.Interval = 1
	}
	r.dt = dt
	r.t0 = r.t0.WithUnit(dt.Unit)
	r.t1 = r.t1.WithUnit(dt.Unit)
}

// MapCoords converts a cube index to the real-world coordinate of the lower
// left corner and start time of that cell.
func (r Reference) MapCoords(i Index) Point {
	return Point{
		T: r.t0.Add(r.dt.Normalize().Mul(int32(i.T))),
		X: r.win.Left + float64(i.X)*r.DX(),
		Y: r.win.Bottom + float64(i.Y)*r.DY(),
	}
}

// CubeCoords converts a real-world coordinate to the index of the cell
// containing it. ok is false if p lies before t0 or left of or below the
// window.
func (r Reference) CubeCoords(p Point) (Index, bool) {
	x := math.Floor((p.X - r.win.Left) / r.DX())
	y := math.Floor((p.Y - r.win.Bottom) / r.DY())
	if x < 0 || y < 0 || x > math.MaxUint32 || y > math.MaxUint32 || p.T.Before(r.t0) {
		return Index{}, false
	}
	var t int32
	if r.dt.Interval > 0 {
		t = datetime.Div(p.T.WithUnit(r.t0.Unit()).Sub(r.t0), r.dt.Normalize())
	}
	if t < 0 {
		return Index{}, false
	}
	return Index{T: uint32(t), Y: uint32(y), X: uint32(x)}, true
}

// Contains reports whether the index lies inside the grid.
func (r Reference) Contains(i Index) bool {
	return i.X < r.nx && i.Y < r.ny && i.T < r.NT()
}

// Equal reports whether both grids are identical. Spatial reference systems
// are compared semantically, see SameSRS.
func (r Reference) Equal(o Reference) bool {
	return r.win == o.win &&
		r.nx == o.nx &&
		r.ny == o.ny &&
		r.t0.Equal(o.t0) &&
		r.dt.Equal(o.dt) &&
		SameSRS(r.srs, o.srs)
}

func (r Reference) String() string {
	return fmt.Sprintf("%s [%g, %g] x [%g, %g] %dx%d, %s..%s by %s (nt=%d)",
		r.srs, r.win.Left, r.win.Right, r.win.Bottom, r.win.Top, r.nx, r.ny, r.t0, r.t1, r.dt, r.NT())
}
