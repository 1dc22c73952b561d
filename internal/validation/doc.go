// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

// Package validation provides struct validation using go-playground/validator v10.
//
// The package wraps the validator library in a thread-safe singleton with the
// custom tags used by cubeflow and translates field errors into readable
// messages. Field names are taken from koanf tags when present, so errors on
// configuration structs name the configuration key:
//
//	type TransportConfig struct {
//	    TaskTopic string `koanf:"task_topic" validate:"required,topic"`
//	}
//
//	if err := validation.ValidateStruct(&cfg); err != nil {
//	    return fmt.Errorf("invalid configuration: %w", err)
//	}
//
// # Custom Tags
//
//   - topic: a message topic or subject prefix made of dot separated tokens
//     without whitespace or NATS wildcards
package validation
