// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package config

import (
	"fmt"
	"net/url"

	"github.com/tomtom215/cubeflow/internal/validation"
)

// Validate checks field constraints and the rules spanning several sections.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateJob,
		c.validateTransport,
		c.validateServer,
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateJob checks that run and coordinator processes know what to do.
func (c *Config) validateJob() error {
	switch c.Job.Mode {
	case ModeWorker:
		return nil
	case ModeCoordinator:
		if c.Processor.Strategy != "distributed" {
			return fmt.Errorf("job.mode=coordinator requires processor.strategy=distributed, got %s", c.Processor.Strategy)
		}
	}
	if c.Job.GraphPath == "" {
		return fmt.Errorf("GRAPH_PATH is required when CUBEFLOW_MODE=%s", c.Job.Mode)
	}
	if c.Job.OutputPath == "" {
		return fmt.Errorf("OUTPUT_PATH is required when CUBEFLOW_MODE=%s", c.Job.Mode)
	}
	return nil
}

// UsesTransport reports whether the process talks to a broker.
func (c *Config) UsesTransport() bool {
	return c.Job.Mode == ModeWorker || c.Processor.Strategy == "distributed"
}

// validateTransport validates the broker URL when the broker is external.
func (c *Config) validateTransport() error {
	if !c.UsesTransport() || c.Transport.Embedded {
		return nil
	}
	if c.Transport.URL == "" {
		return fmt.Errorf("NATS_URL is required unless NATS_EMBEDDED=true")
	}
	if err := validateNATSURL(c.Transport.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

// validateServer validates the status API settings.
func (c *Config) validateServer() error {
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required when HTTP_ENABLED=true")
	}
	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
	}

	return nil
}
