// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package version records the build version of cubeflow.
//
// The major/minor/patch marker is written into graph descriptions and export
// headers. GitDesc and GitCommit are set at build time:
//
//	go build -ldflags "-X github.com/tomtom215/cubeflow/internal/version.GitCommit=$(git rev-parse HEAD)"
package version

import "fmt"

const (
	Major = 0
	Minor = 3
	Patch = 2
)

var (
	// GitDesc is the output of git describe at build time.
	GitDesc = "dev"

	// GitCommit is the last commit hash at build time.
	GitCommit = ""
)

// Info holds version information of the library.
type Info struct {
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	GitDesc   string `json:"git_desc,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

// Get returns the version information of the running binary.
func Get() Info {
	return Info{
		Major:     Major,
		Minor:     Minor,
		Patch:     Patch,
		GitDesc:   GitDesc,
		GitCommit: GitCommit,
	}
}

// String returns the major.minor.patch marker.
func String() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

// Source returns the marker recorded as "source" attribute in exports.
func Source() string {
	return "cubeflow " + String()
}
