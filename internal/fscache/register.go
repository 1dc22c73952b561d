// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"github.com/tomtom215/cubeflow/internal/cube"
)

// Register adds the fscache constructor to r. Values missing from a
// description are taken from defaults; the worker id always is.
func Register(r *cube.Registry, defaults Options) {
	r.Register(TypeFSCache, func(d cube.Description, reg *cube.Registry) (cube.Node, error) {
		opts := defaults
		if d.Has("path") {
			if err := d.Decode("path", &opts.Root); err != nil {
				return nil, cube.ConfigError("decode", err)
			}
		}
		if d.Has("max_size_bytes") {
			if err := d.Decode("max_size_bytes", &opts.MaxSizeBytes); err != nil {
				return nil, cube.ConfigError("decode", err)
			}
		}
		if d.Has("index") {
			if err := d.Decode("index", &opts.Index); err != nil {
				return nil, cube.ConfigError("decode", err)
			}
		}
		in, err := reg.DecodeParent(d)
		if err != nil {
			return nil, err
		}
		return New(in, opts)
	})
}
