// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package cube

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubeflow/internal/version"
)

var (
	// ErrUnknownCubeType is returned when a description names an
	// unregistered cube_type.
	ErrUnknownCubeType = errors.New("unknown cube type")

	// ErrInvalidDescription is returned for malformed descriptions.
	ErrInvalidDescription = errors.New("invalid cube description")

	// ErrIncompatibleVersion is returned for graphs written by a different
	// major version.
	ErrIncompatibleVersion = errors.New("incompatible graph version")
)

// Description keys shared by all nodes.
const (
	KeyType   = "cube_type"
	KeyParent = "in_cube"
)

// Description is the JSON object describing a node.
type Description map[string]any

// Type returns the cube_type tag.
func (d Description) Type() string {
	s, _ := d[KeyType].(string)
	return s
}

// Has reports whether key is present.
func (d Description) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Decode converts the value stored under key into target. Values built in
// Go and values parsed from JSON decode alike.
func (d Description) Decode(key string, target any) error {
	v, ok := d[key]
	if !ok {
		return fmt.Errorf("%w: %s: missing %q", ErrInvalidDescription, d.Type(), key)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %q: %v", ErrInvalidDescription, d.Type(), key, err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("%w: %s: %q: %v", ErrInvalidDescription, d.Type(), key, err)
	}
	return nil
}

// Parent returns the nested description of the input cube.
func (d Description) Parent() (Description, error) {
	switch p := d[KeyParent].(type) {
	case Description:
		return p, nil
	case map[string]any:
		return Description(p), nil
	case nil:
		return nil, fmt.Errorf("%w: %s: missing %q", ErrInvalidDescription, d.Type(), KeyParent)
	default:
		return nil, fmt.Errorf("%w: %s: %q is %T", ErrInvalidDescription, d.Type(), KeyParent, p)
	}
}

// Constructor rebuilds a node from its description. Constructors for
// derived nodes decode their parent through r.
type Constructor func(d Description, r *Registry) (Node, error)

// Registry maps cube_type tags to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns a registry holding the operators of this package.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.Register(TypeDummy, decodeDummy)
	r.Register(TypeSelectBands, decodeSelectBands)
	r.Register(TypeReduceTime, decodeReduceTime)
	r.Register(TypeFillNodata, decodeFillNodata)
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(cubeType string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[cubeType] = c
}

// Types returns the registered tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode rebuilds the node described by d, including its parents.
func (r *Registry) Decode(d Description) (Node, error) {
	r.mu.RLock()
	c, ok := r.ctors[d.Type()]
	r.mu.RUnlock()
	if !ok {
		return nil, ConfigError("decode", fmt.Errorf("%w: %q", ErrUnknownCubeType, d.Type()))
	}
	return c(d, r)
}

// DecodeParent rebuilds the input cube of d.
func (r *Registry) DecodeParent(d Description) (Node, error) {
	p, err := d.Parent()
	if err != nil {
		return nil, ConfigError("decode", err)
	}
	return r.Decode(p)
}

// graphDocument is the persisted form of a graph.
type graphDocument struct {
	Version string      `json:"version"`
	Cube    Description `json:"cube"`
}

// MarshalGraph returns the indented JSON description of n and its parents
// together with the version that wrote it.
func MarshalGraph(n Node) ([]byte, error) {
	return json.MarshalIndent(graphDocument{Version: version.String(), Cube: n.Describe()}, "", "  ")
}

// UnmarshalGraph parses a document written by MarshalGraph and rebuilds the
// graph. Documents from a different major version are rejected.
func UnmarshalGraph(r *Registry, data []byte) (Node, error) {
	d, err := ParseGraph(data)
	if err != nil {
		return nil, err
	}
	return r.Decode(d)
}

// ParseGraph validates the version of a graph document and returns the root
// description without building nodes.
func ParseGraph(data []byte) (Description, error) {
	var doc graphDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ConfigError("parse graph", fmt.Errorf("%w: %v", ErrInvalidDescription, err))
	}
	if doc.Cube == nil {
		return nil, ConfigError("parse graph", fmt.Errorf("%w: missing cube", ErrInvalidDescription))
	}
	if major, ok := majorOf(doc.Version); !ok || major != version.Major {
		return nil, ConfigError("parse graph", fmt.Errorf("%w: %q, running %s", ErrIncompatibleVersion, doc.Version, version.String()))
	}
	return doc.Cube, nil
}

func majorOf(v string) (int, bool) {
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	return n, err == nil
}
