// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package processor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
)

// Progress receives the completed fraction of a run, between 0 and 1.
// Implementations must be safe for concurrent use.
type Progress interface {
	Set(p float64)
	Increment(dp float64)
	Finalize()
}

// ProgressFactory creates the reporter for one run of the named strategy.
type ProgressFactory func(strategy string) Progress

// NoProgress discards all updates.
type NoProgress struct{}

func (NoProgress) Set(float64)       {}
func (NoProgress) Increment(float64) {}
func (NoProgress) Finalize()         {}

// NewNoProgress is a ProgressFactory for NoProgress.
func NewNoProgress(string) Progress { return NoProgress{} }

// fraction is a mutex guarded value clamped to [0, 1].
type fraction struct {
	mu sync.Mutex
	v  float64
}

func (f *fraction) set(p float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v = clamp(p)
	return f.v
}

func (f *fraction) add(dp float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v = clamp(f.v + dp)
	return f.v
}

func (f *fraction) get() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// DefaultLogInterval is the minimum time between two progress log lines.
const DefaultLogInterval = 2 * time.Second

// LogProgress writes progress to the logger, at most once per interval.
// The first update and Finalize are always logged.
type LogProgress struct {
	logger    zerolog.Logger
	sometimes *rate.Sometimes
	value     fraction
}

// NewLogProgress returns a log reporter with the given minimum interval.
func NewLogProgress(strategy string, interval time.Duration) *LogProgress {
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	return &LogProgress{
		logger: logging.With().
			Str("component", "processor").
			Str("strategy", strategy).
			Logger(),
		sometimes: &rate.Sometimes{First: 1, Interval: interval},
	}
}

// LogProgressFactory returns a ProgressFactory for LogProgress.
func LogProgressFactory(interval time.Duration) ProgressFactory {
	return func(strategy string) Progress {
		return NewLogProgress(strategy, interval)
	}
}

func (l *LogProgress) Set(p float64) {
	l.report(l.value.set(p))
}

func (l *LogProgress) Increment(dp float64) {
	l.report(l.value.add(dp))
}

func (l *LogProgress) Finalize() {
	l.logger.Info().Float64("progress", 1).Msg("Progress 100%")
}

func (l *LogProgress) report(v float64) {
	l.sometimes.Do(func() {
		l.logger.Info().
			Float64("progress", v).
			Msgf("Progress %.0f%%", v*100)
	})
}

// MetricsProgress publishes progress as the apply_progress_ratio gauge.
type MetricsProgress struct {
	strategy string
	value    fraction
}

// NewMetricsProgress returns a gauge backed reporter.
func NewMetricsProgress(strategy string) Progress {
	return &MetricsProgress{strategy: strategy}
}

func (m *MetricsProgress) Set(p float64) {
	metrics.ApplyProgress.WithLabelValues(m.strategy).Set(m.value.set(p))
}

func (m *MetricsProgress) Increment(dp float64) {
	metrics.ApplyProgress.WithLabelValues(m.strategy).Set(m.value.add(dp))
}

func (m *MetricsProgress) Finalize() {
	metrics.ApplyProgress.WithLabelValues(m.strategy).Set(1)
}

// Value returns the last reported fraction.
func (m *MetricsProgress) Value() float64 {
	return m.value.get()
}

type multi []Progress

func (m multi) Set(p float64) {
	for _, r := range m {
		r.Set(p)
	}
}

func (m multi) Increment(dp float64) {
	for _, r := range m {
		r.Increment(dp)
	}
}

func (m multi) Finalize() {
	for _, r := range m {
		r.Finalize()
	}
}

// Multi returns a factory whose reporters forward every update to one
// reporter of each given factory.
func Multi(factories ...ProgressFactory) ProgressFactory {
	return func(strategy string) Progress {
		m := make(multi, 0, len(factories))
		for _, f := range factories {
			if f != nil {
				m = append(m, f(strategy))
			}
		}
		return m
	}
}
