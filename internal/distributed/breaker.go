// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
)

// BreakerConfig configures the circuit breaker guarding task publishing.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker is the circuit breaker type used by the coordinator.
type Breaker = gobreaker.CircuitBreaker[struct{}]

// NewBreaker creates a circuit breaker that reports its state changes to
// the log and to metrics.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateValue(to))
			logging.Warn().
				Str("component", "distributed").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker[struct{}](settings)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return metrics.StateHalfOpen
	case gobreaker.StateOpen:
		return metrics.StateOpen
	default:
		return metrics.StateClosed
	}
}

// guard runs fn through cb and records the outcome.
func guard(cb *Breaker, fn func() error) error {
	if cb == nil {
		return fn()
	}
	_, err := cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(cb.Name(), "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(cb.Name(), "rejected")
	default:
		metrics.RecordCircuitBreakerRequest(cb.Name(), "failure")
	}
	return err
}
