// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package spacetime

import "strings"

// Aggregation combines several observations that fall into the same cell.
type Aggregation int

const (
	AggregationNone Aggregation = iota
	AggregationMin
	AggregationMax
	AggregationMean
	AggregationMedian
	AggregationFirst
	AggregationLast
	AggregationCountImages
	AggregationCountValues
)

var aggregationNames = [...]string{
	AggregationNone:        "none",
	AggregationMin:         "min",
	AggregationMax:         "max",
	AggregationMean:        "mean",
	AggregationMedian:      "median",
	AggregationFirst:       "first",
	AggregationLast:        "last",
	AggregationCountImages: "count_images",
	AggregationCountValues: "count_values",
}

func (a Aggregation) String() string {
	if a < 0 || int(a) >= len(aggregationNames) {
		return aggregationNames[AggregationNone]
	}
	return aggregationNames[a]
}

// ParseAggregation is case insensitive. Unknown names yield AggregationNone.
func ParseAggregation(s string) Aggregation {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range aggregationNames {
		if s == name {
			return Aggregation(i)
		}
	}
	return AggregationNone
}

// MarshalText implements encoding.TextMarshaler.
func (a Aggregation) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Aggregation) UnmarshalText(b []byte) error {
	*a = ParseAggregation(string(b))
	return nil
}

// Resampling warps a source raster onto the cube grid.
type Resampling int

const (
	ResamplingNear Resampling = iota
	ResamplingBilinear
	ResamplingCubic
	ResamplingCubicSpline
	ResamplingLanczos
	ResamplingAverage
	ResamplingMode
	ResamplingMax
	ResamplingMin
	ResamplingMedian
	ResamplingQ1
	ResamplingQ3
)

var resamplingNames = [...]string{
	ResamplingNear:        "near",
	ResamplingBilinear:    "bilinear",
	ResamplingCubic:       "cubic",
	ResamplingCubicSpline: "cubicspline",
	ResamplingLanczos:     "lanczos",
	ResamplingAverage:     "average",
	ResamplingMode:        "mode",
	ResamplingMax:         "max",
	ResamplingMin:         "min",
	ResamplingMedian:      "med",
	ResamplingQ1:          "q1",
	ResamplingQ3:          "q3",
}

var resamplingAliases = map[string]Resampling{
	"nearest": ResamplingNear,
	"mean":    ResamplingAverage,
	"median":  ResamplingMedian,
}

func (r Resampling) String() string {
	if r < 0 || int(r) >= len(resamplingNames) {
		return resamplingNames[ResamplingNear]
	}
	return resamplingNames[r]
}

// ParseResampling is case insensitive and accepts "nearest", "mean" and
// "median" as aliases. Unknown names yield ResamplingNear.
func ParseResampling(s string) Resampling {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := resamplingAliases[s]; ok {
		return r
	}
	for i, name := range resamplingNames {
		if s == name {
			return Resampling(i)
		}
	}
	return ResamplingNear
}

// MarshalText implements encoding.TextMarshaler.
func (r Resampling) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Resampling) UnmarshalText(b []byte) error {
	*r = ParseResampling(string(b))
	return nil
}
