// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package spacetime

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubeflow/internal/datetime"
)

// ErrInvalidView is returned when a view document is incomplete.
var ErrInvalidView = errors.New("invalid cube view")

// View is a grid together with the methods used to read source images into
// it.
type View struct {
	Reference
	Aggregation Aggregation
	Resampling  Resampling
}

type viewSpace struct {
	Left   float64  `json:"left"`
	Right  float64  `json:"right"`
	Top    float64  `json:"top"`
	Bottom float64  `json:"bottom"`
	NX     *uint32  `json:"nx,omitempty"`
	NY     *uint32  `json:"ny,omitempty"`
	DX     *float64 `json:"dx,omitempty"`
	DY     *float64 `json:"dy,omitempty"`
	SRS    string   `json:"srs"`
}

type viewTime struct {
	T0 string  `json:"t0"`
	T1 string  `json:"t1"`
	DT string  `json:"dt,omitempty"`
	NT *uint32 `json:"nt,omitempty"`
}

type viewDocument struct {
	Space       viewSpace   `json:"space"`
	Time        viewTime    `json:"time"`
	Aggregation Aggregation `json:"aggregation"`
	Resampling  Resampling  `json:"resampling"`
}

// MarshalJSON writes the view with nx, ny and dt.
func (v View) MarshalJSON() ([]byte, error) {
	nx, ny := v.nx, v.ny
	doc := viewDocument{
		Space: viewSpace{
			Left:   v.win.Left,
			Right:  v.win.Right,
			Top:    v.win.Top,
			Bottom: v.win.Bottom,
			NX:     &nx,
			NY:     &ny,
			SRS:    v.srs,
		},
		Time: viewTime{
			T0: v.t0.String(),
			T1: v.t1.String(),
			DT: v.dt.String(),
		},
		Aggregation: v.Aggregation,
		Resampling:  v.Resampling,
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a view. The spatial grid may be given by nx/ny or by
// dx/dy, the temporal grid by dt or nt. Sizes given as dx, dy, dt or nt are
// aligned through the corresponding setter, so the stored extent may grow.
func (v *View) UnmarshalJSON(b []byte) error {
	_, err := v.decode(b)
	return err
}

// decode reads a view and returns the alignment adjustments its setters made.
func (v *View) decode(b []byte) ([]Adjustment, error) {
	var doc viewDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidView, err)
	}

	win := Window{Left: doc.Space.Left, Right: doc.Space.Right, Bottom: doc.Space.Bottom, Top: doc.Space.Top}
	if !win.Valid() {
		return nil, fmt.Errorf("%w: %w: %+v", ErrInvalidView, ErrInvalidWindow, win)
	}
	t0, err := datetime.Parse(doc.Time.T0)
	if err != nil {
		return nil, fmt.Errorf("%w: t0: %w", ErrInvalidView, err)
	}
	t1, err := datetime.Parse(doc.Time.T1)
	if err != nil {
		return nil, fmt.Errorf("%w: t1: %w", ErrInvalidView, err)
	}
	if t1.Before(t0) {
		return nil, fmt.Errorf("%w: %w: t1 %s before t0 %s", ErrInvalidView, ErrInvalidExtent, t1, t0)
	}

	r := Reference{srs: doc.Space.SRS, win: win, nx: 1, ny: 1, t0: t0, t1: t1}
	adj, err := r.applySpace(doc.Space)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidView, err)
	}

	switch {
	case doc.Time.DT != "":
		dt, err := datetime.ParseDuration(doc.Time.DT)
		if err != nil {
			return nil, fmt.Errorf("%w: dt: %w", ErrInvalidView, err)
		}
		a, err := r.SetDT(dt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidView, err)
		}
		adj = appendAdjustment(adj, a)
	case doc.Time.NT != nil:
		a, err := r.SetNT(*doc.Time.NT)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidView, err)
		}
		adj = appendAdjustment(adj, a)
	default:
		return nil, fmt.Errorf("%w: time needs dt or nt", ErrInvalidView)
	}

	v.Reference = r
	v.Aggregation = doc.Aggregation
	v.Resampling = doc.Resampling
	return adj, nil
}

func (r *Reference) applySpace(s viewSpace) ([]Adjustment, error) {
	var adj []Adjustment
	switch {
	case s.NX != nil:
		if err := r.SetNX(*s.NX); err != nil {
			return nil, err
		}
	case s.DX != nil:
		a, err := r.SetDX(*s.DX)
		if err != nil {
			return nil, err
		}
		adj = appendAdjustment(adj, a)
	default:
		return nil, errors.New("space needs nx or dx")
	}
	switch {
	case s.NY != nil:
		if err := r.SetNY(*s.NY); err != nil {
			return nil, err
		}
	case s.DY != nil:
		a, err := r.SetDY(*s.DY)
		if err != nil {
			return nil, err
		}
		adj = appendAdjustment(adj, a)
	default:
		return nil, errors.New("space needs ny or dy")
	}
	return adj, nil
}

func appendAdjustment(adj []Adjustment, a Adjustment) []Adjustment {
	if a.IsZero() {
		return adj
	}
	return append(adj, a)
}

// ParseView decodes a view from JSON text. Any change made to align the
// extent with dx, dy, dt or nt is returned as well as logged.
func ParseView(s string) (View, []Adjustment, error) {
	var v View
	adj, err := v.decode([]byte(s))
	if err != nil {
		return View{}, nil, err
	}
	return v, adj, nil
}

// ReadViewFile decodes a view from a JSON file.
func ReadViewFile(path string) (View, []Adjustment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return View{}, nil, fmt.Errorf("read view %s: %w", path, err)
	}
	return ParseView(string(b))
}

// JSON returns the indented JSON text of the view.
func (v View) JSON() (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFile stores the view as JSON.
func (v View) WriteFile(path string) error {
	s, err := v.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(s+"\n"), 0o644); err != nil {
		return fmt.Errorf("write view %s: %w", path, err)
	}
	return nil
}

// Equal compares grids and methods.
func (v View) Equal(o View) bool {
	return v.Reference.Equal(o.Reference) && v.Aggregation == o.Aggregation && v.Resampling == o.Resampling
}
