// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package engine

import (
	"context"
	"fmt"

	"github.com/tomtom215/cubeflow/internal/config"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/export"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/processor"
)

// options fills in the runtime's processor when opts does not name one.
func (rt *Runtime) options(opts *export.Options) export.Options {
	var o export.Options
	if opts != nil {
		o = *opts
	}
	if o.Processor == nil {
		o.Processor = rt.Processor
	}
	return o
}

// ExportChunkDir writes node to dir, one file per chunk, band and time
// slice. A nil opts uses the runtime processor without compression.
func (rt *Runtime) ExportChunkDir(ctx context.Context, node cube.Node, dir string, opts *export.Options) (processor.Report, error) {
	report, err := export.WriteChunkDir(ctx, node, dir, rt.options(opts))
	rt.record(report, export.FormatChunkDir, dir, node, err)
	return report, err
}

// ExportDense writes node to a single dense file at path. A nil opts uses
// the runtime processor.
func (rt *Runtime) ExportDense(ctx context.Context, node cube.Node, path string, opts *export.Options) (processor.Report, error) {
	report, err := export.WriteDenseFile(ctx, node, path, rt.options(opts))
	rt.record(report, export.FormatDense, path, node, err)
	return report, err
}

// Export writes node as described by job.
func (rt *Runtime) Export(ctx context.Context, node cube.Node, job config.JobConfig) (processor.Report, error) {
	opts := &export.Options{Compress: job.Compress}
	switch job.Format {
	case export.FormatChunkDir:
		return rt.ExportChunkDir(ctx, node, job.OutputPath, opts)
	case export.FormatDense:
		return rt.ExportDense(ctx, node, job.OutputPath, opts)
	default:
		return processor.Report{}, cube.ExportError("export", fmt.Errorf("unknown format %q", job.Format))
	}
}

func (rt *Runtime) record(report processor.Report, format, output string, node cube.Node, err error) {
	rec := NewRunRecord(report, format, output, node.Type(), err)
	if rt.History != nil {
		rt.History.Add(rec)
	}

	event := logging.Info()
	if err != nil || len(rec.Failed) > 0 {
		event = logging.Warn()
	}
	event.
		Str("component", "engine").
		Str("run_id", rec.RunID).
		Str("format", format).
		Str("output", output).
		Uint32("total", rec.Total).
		Uint32("succeeded", rec.Succeeded).
		Int("failed", len(rec.Failed)).
		Str("duration", rec.Duration).
		AnErr("error", err).
		Msg("Export finished")
}
