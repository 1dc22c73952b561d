// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package distributed

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// Default topic names.
const (
	DefaultTaskTopic    = "cubeflow.tasks"
	DefaultResultPrefix = "cubeflow.results"
)

// Metadata keys set on transport messages.
const (
	MetaRunID   = "run_id"
	MetaChunkID = "chunk_id"
	MetaWorker  = "worker_id"
)

var (
	// ErrRemote wraps chunk errors reported by a worker.
	ErrRemote = errors.New("remote chunk failure")

	// ErrInvalidMessage is returned for payloads that cannot be decoded.
	ErrInvalidMessage = errors.New("invalid transport message")
)

// ResultTopic is the topic carrying results of one run.
func ResultTopic(prefix, runID string) string {
	return prefix + "." + runID
}

// Task asks a worker for one chunk of a graph.
type Task struct {
	RunID   string          `json:"run_id"`
	ChunkID chunk.ID        `json:"chunk_id"`
	Graph   json.RawMessage `json:"graph"`
}

// Result carries a computed chunk, or the reason it could not be computed.
type Result struct {
	RunID   string   `json:"run_id"`
	ChunkID chunk.ID `json:"chunk_id"`
	Worker  string   `json:"worker"`
	Error   string   `json:"error,omitempty"`
	Payload []byte   `json:"payload,omitempty"`
}

// Err returns the remote error, or nil.
func (r Result) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: worker %s: %s", ErrRemote, r.Worker, r.Error)
}

// Buffer decodes the payload.
func (r *Result) Buffer() (*chunk.Buffer, error) {
	return chunk.Unmarshal(r.Payload)
}

func decodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("%w: task: %v", ErrInvalidMessage, err)
	}
	if t.RunID == "" || len(t.Graph) == 0 {
		return Task{}, fmt.Errorf("%w: task without run id or graph", ErrInvalidMessage)
	}
	return t, nil
}

func decodeResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("%w: result: %v", ErrInvalidMessage, err)
	}
	return r, nil
}
