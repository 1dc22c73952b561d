// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Environment variables consulted for the worker id.
const (
	EnvWorkerID       = "CUBEFLOW_WORKER_ID"
	EnvLegacyWorkerID = "WORKER_ID"
)

// ErrInvalidWorkerID is returned for ids that are not a single path element.
var ErrInvalidWorkerID = errors.New("invalid worker id")

// ResolveWorkerID returns explicit if set, else the first non-empty
// environment override, else a random token.
func ResolveWorkerID(explicit string) (string, error) {
	id := explicit
	if id == "" {
		id = os.Getenv(EnvWorkerID)
	}
	if id == "" {
		id = os.Getenv(EnvLegacyWorkerID)
	}
	if id == "" {
		id = RandomWorkerID()
	}
	if err := validateWorkerID(id); err != nil {
		return "", err
	}
	return id, nil
}

// RandomWorkerID returns an 8 character hex token.
func RandomWorkerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func validateWorkerID(id string) error {
	switch {
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidWorkerID, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidWorkerID, id)
	case strings.TrimSpace(id) != id:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidWorkerID, id)
	}
	return nil
}
