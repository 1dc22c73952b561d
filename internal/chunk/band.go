// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package chunk

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrDuplicateBand is returned when adding a band whose name already exists.
var ErrDuplicateBand = errors.New("duplicate band name")

// Band describes one variable of a cube. NoData is kept as text because the
// common sentinel NaN has no JSON number form; empty means NaN.
type Band struct {
	Name   string  `json:"name"`
	Unit   string  `json:"unit,omitempty"`
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
	NoData string  `json:"nodata,omitempty"`
	Type   string  `json:"type"`
}

// NewBand returns a float64 band with scale 1 and offset 0.
func NewBand(name string) Band {
	return Band{Name: name, Scale: 1, Type: "float64"}
}

// Bands is an ordered collection of bands with unique names.
type Bands struct {
	list  []Band
	index map[string]int
}

// NewBands builds a collection, failing on duplicate names.
func NewBands(bands ...Band) (Bands, error) {
	var bs Bands
	for _, b := range bands {
		if err := bs.Add(b); err != nil {
			return Bands{}, err
		}
	}
	return bs, nil
}

// Add appends a band.
func (bs *Bands) Add(b Band) error {
	if bs.index == nil {
		bs.index = make(map[string]int)
	}
	if _, ok := bs.index[b.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateBand, b.Name)
	}
	bs.index[b.Name] = len(bs.list)
	bs.list = append(bs.list, b)
	return nil
}

// Count returns the number of bands.
func (bs Bands) Count() int { return len(bs.list) }

// Get returns the band at position i.
func (bs Bands) Get(i int) Band { return bs.list[i] }

// Index returns the position of a band or -1.
func (bs Bands) Index(name string) int {
	if i, ok := bs.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether a band exists.
func (bs Bands) Has(name string) bool {
	_, ok := bs.index[name]
	return ok
}

// ByName returns a band by name.
func (bs Bands) ByName(name string) (Band, bool) {
	i, ok := bs.index[name]
	if !ok {
		return Band{}, false
	}
	return bs.list[i], true
}

// All returns a copy of the bands in order.
func (bs Bands) All() []Band {
	out := make([]Band, len(bs.list))
	copy(out, bs.list)
	return out
}

// Names returns the band names in order.
func (bs Bands) Names() []string {
	out := make([]string, len(bs.list))
	for i, b := range bs.list {
		out[i] = b.Name
	}
	return out
}

// MarshalJSON writes the bands as an array.
func (bs Bands) MarshalJSON() ([]byte, error) {
	if bs.list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(bs.list)
}

// UnmarshalJSON reads an array of bands.
func (bs *Bands) UnmarshalJSON(b []byte) error {
	var list []Band
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	parsed, err := NewBands(list...)
	if err != nil {
		return err
	}
	*bs = parsed
	return nil
}
