// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package spacetime

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tomtom215/cubeflow/internal/datetime"
)

const testViewJSON = `{
  "space": {"left": 0, "right": 10, "top": 10, "bottom": 0, "nx": 4, "ny": 4, "srs": "EPSG:3857"},
  "time": {"t0": "2020-01-01", "t1": "2020-01-04", "dt": "P1D"},
  "aggregation": "median",
  "resampling": "bilinear"
}`

func TestParseView(t *testing.T) {
	t.Parallel()

	v, adj, err := ParseView(testViewJSON)
	if err != nil {
		t.Fatalf("ParseView: %v", err)
	}
	if len(adj) != 0 {
		t.Errorf("aligned view reported adjustments %v", adj)
	}
	if v.NX() != 4 || v.NY() != 4 || v.NT() != 4 {
		t.Errorf("grid = %dx%dx%d", v.NT(), v.NY(), v.NX())
	}
	if v.DT() != datetime.Days(1) {
		t.Errorf("dt = %s", v.DT())
	}
	if v.Aggregation != AggregationMedian || v.Resampling != ResamplingBilinear {
		t.Errorf("methods = %s/%s", v.Aggregation, v.Resampling)
	}
	if !v.Equal(View{Reference: newTestReference(t), Aggregation: AggregationMedian, Resampling: ResamplingBilinear}) {
		t.Error("parsed view differs from constructed view")
	}
}

func TestParseView_CellSizes(t *testing.T) {
	t.Parallel()

	v, adj, err := ParseView(`{
	  "space": {"left": 0, "right": 10, "top": 5, "bottom": 0, "dx": 3, "dy": 2.5, "srs": "EPSG:32632"},
	  "time": {"t0": "2020-01", "t1": "2020-06", "nt": 4}
	}`)
	if err != nil {
		t.Fatalf("ParseView: %v", err)
	}
	if v.NX() != 4 || v.Window().Left != -1 || v.Window().Right != 11 {
		t.Errorf("x grid = %d over %+v", v.NX(), v.Window())
	}
	if v.NY() != 2 {
		t.Errorf("ny = %d, want 2", v.NY())
	}
	if v.DT() != datetime.Months(2) || v.NT() != 4 {
		t.Errorf("time grid = %s x %d", v.DT(), v.NT())
	}
	if v.T1().String() != "2020-08" {
		t.Errorf("t1 = %s, want 2020-08", v.T1())
	}
	if v.Aggregation != AggregationNone || v.Resampling != ResamplingNear {
		t.Errorf("default methods = %s/%s", v.Aggregation, v.Resampling)
	}

	if len(adj) != 2 {
		t.Fatalf("adjustments = %v, want x and t", adj)
	}
	if adj[0].Axis != AxisX || adj[0].Widen != 1 {
		t.Errorf("x adjustment = %+v", adj[0])
	}
	if adj[1].Axis != AxisT || adj[1].OldEnd.String() != "2020-06" || adj[1].NewEnd.String() != "2020-08" {
		t.Errorf("t adjustment = %s", adj[1])
	}
}

func TestParseView_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":   `{`,
		"no nx":      `{"space": {"left": 0, "right": 1, "top": 1, "bottom": 0, "ny": 1}, "time": {"t0": "2020", "t1": "2020", "dt": "P1Y"}}`,
		"bad window": `{"space": {"left": 1, "right": 0, "top": 1, "bottom": 0, "nx": 1, "ny": 1}, "time": {"t0": "2020", "t1": "2020", "dt": "P1Y"}}`,
		"bad t0":     `{"space": {"left": 0, "right": 1, "top": 1, "bottom": 0, "nx": 1, "ny": 1}, "time": {"t0": "soon", "t1": "2020", "dt": "P1Y"}}`,
		"bad dt":     `{"space": {"left": 0, "right": 1, "top": 1, "bottom": 0, "nx": 1, "ny": 1}, "time": {"t0": "2020", "t1": "2020", "dt": "1Y"}}`,
		"no dt":      `{"space": {"left": 0, "right": 1, "top": 1, "bottom": 0, "nx": 1, "ny": 1}, "time": {"t0": "2020", "t1": "2020"}}`,
		"zero nx":    `{"space": {"left": 0, "right": 1, "top": 1, "bottom": 0, "nx": 0, "ny": 1}, "time": {"t0": "2020", "t1": "2020", "dt": "P1Y"}}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := ParseView(doc); !errors.Is(err, ErrInvalidView) {
				t.Errorf("error = %v, want ErrInvalidView", err)
			}
		})
	}
}

func TestView_FileRoundTrip(t *testing.T) {
	t.Parallel()

	v, _, err := ParseView(testViewJSON)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.SetDT(datetime.Weeks(1)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "view.json")
	if err := v.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	back, _, err := ReadViewFile(path)
	if err != nil {
		t.Fatalf("ReadViewFile: %v", err)
	}
	if !back.Equal(v) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", back.Reference, v.Reference)
	}
	if back.T1().String() != v.T1().String() {
		t.Errorf("t1 = %s, want %s", back.T1(), v.T1())
	}
}

func TestReadViewFile_Missing(t *testing.T) {
	t.Parallel()

	if _, _, err := ReadViewFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
