// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/cubeflow/internal/chunk"
	"github.com/tomtom215/cubeflow/internal/cube"
	"github.com/tomtom215/cubeflow/internal/logging"
	"github.com/tomtom215/cubeflow/internal/metrics"
)

// TypeFSCache is the cube_type of Node.
const TypeFSCache = "fscache"

// indexDir is the Badger directory inside the worker directory.
const indexDir = ".index"

// ErrNoRoot is returned when Options.Root is empty.
var ErrNoRoot = errors.New("cache root not set")

// Options configures a cache node.
type Options struct {
	// Root is the directory holding one subdirectory per worker id.
	Root string

	// MaxSizeBytes bounds the total size of cached files. 0 means
	// unbounded.
	MaxSizeBytes int64

	// WorkerID overrides the environment and the random default.
	WorkerID string

	// Index is IndexMemory (default) or IndexBadger.
	Index string
}

// State is the cache state of one chunk.
type State int

const (
	StateAbsent State = iota
	StateMaterializing
	StateCached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateMaterializing:
		return "materializing"
	case StateCached:
		return "cached"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node caches the chunks of its input cube on disk.
type Node struct {
	*cube.Base
	in       cube.Node
	opts     Options
	workerID string
	files    store
	index    Index
	logger   zerolog.Logger

	group   singleflight.Group
	evictMu sync.Mutex

	stateMu sync.Mutex
	states  map[chunk.ID]State

	closed atomic.Bool
}

// New wraps in with a disk cache. Existing files in the worker directory
// are adopted.
func New(in cube.Node, opts Options) (*Node, error) {
	if opts.Root == "" {
		return nil, cube.ConfigError("fscache", ErrNoRoot)
	}
	if opts.MaxSizeBytes < 0 {
		opts.MaxSizeBytes = 0
	}
	if opts.Index == "" {
		opts.Index = IndexMemory
	}

	wid, err := ResolveWorkerID(opts.WorkerID)
	if err != nil {
		return nil, cube.ConfigError("fscache", err)
	}
	dir := filepath.Join(opts.Root, wid)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, cube.ConfigError("fscache", fmt.Errorf("create cache directory: %w", err))
	}

	var index Index
	switch opts.Index {
	case IndexMemory:
		index = NewMemoryIndex()
	case IndexBadger:
		bi, err := OpenBadgerIndex(filepath.Join(dir, indexDir))
		if err != nil {
			// Another node with the same identity holds the directory lock.
			// The files are shared either way, so an in-memory index over
			// the same directory is enough.
			logging.Warn().
				Err(err).
				Str("component", "fscache").
				Str("worker_id", wid).
				Msg("Cache index unavailable, using in-memory index")
			metrics.RecordCacheError(TypeFSCache, "index_open")
			index = NewMemoryIndex()
			break
		}
		index = bi
	default:
		return nil, cube.ConfigError("fscache", fmt.Errorf("unknown index %q", opts.Index))
	}

	base, err := cube.NewBase(TypeFSCache, in.Reference(), in.ChunkSize(), in.Bands())
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	n := &Node{
		Base:     base,
		in:       in,
		opts:     opts,
		workerID: wid,
		files:    store{dir: dir},
		index:    index,
		logger: logging.With().
			Str("component", "fscache").
			Str("worker_id", wid).
			Logger(),
		states: make(map[chunk.ID]State),
	}
	if err := n.reconcile(); err != nil {
		_ = index.Close()
		return nil, cube.ConfigError("fscache", err)
	}
	n.evict()
	cube.Link(in, n)

	n.logger.Info().
		Str("dir", dir).
		Int64("max_size_bytes", opts.MaxSizeBytes).
		Str("index", opts.Index).
		Int("entries", index.Len()).
		Msg("Chunk cache opened")
	return n, nil
}

// reconcile makes the index match the files on disk.
func (n *Node) reconcile() error {
	onDisk, err := n.files.scan()
	if err != nil {
		return fmt.Errorf("scan cache directory: %w", err)
	}
	present := make(map[chunk.ID]bool, len(onDisk))
	for _, e := range onDisk {
		present[e.ID] = true
	}
	for _, e := range n.index.Entries() {
		if !present[e.ID] {
			if err := n.index.Remove(e.ID); err != nil {
				return err
			}
		}
	}

	// Files the index does not know yet are adopted oldest first.
	var adopt []Entry
	for _, e := range onDisk {
		if cur, ok := n.index.Get(e.ID); ok && cur.Size == e.Size {
			continue
		}
		adopt = append(adopt, e)
	}
	sortByAccess(adopt)
	for _, e := range adopt {
		if err := n.index.Put(e); err != nil {
			return err
		}
	}
	for _, e := range n.index.Entries() {
		n.states[e.ID] = StateCached
	}
	return nil
}

// WorkerID returns the resolved worker identity.
func (n *Node) WorkerID() string { return n.workerID }

// Dir returns the worker directory.
func (n *Node) Dir() string { return n.files.dir }

// Input returns the cached node.
func (n *Node) Input() cube.Node { return n.in }

// MaxSizeBytes returns the size budget; 0 means unbounded.
func (n *Node) MaxSizeBytes() int64 { return n.opts.MaxSizeBytes }

// Usage returns the bytes and number of chunks currently cached.
func (n *Node) Usage() (int64, int) {
	return n.index.Bytes(), n.index.Len()
}

// State returns the cache state of id.
func (n *Node) State(id chunk.ID) State {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.states[id]
}

func (n *Node) setState(id chunk.ID, s State) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if s == StateAbsent {
		delete(n.states, id)
		return
	}
	n.states[id] = s
}

// ReadChunk implements cube.Node.
func (n *Node) ReadChunk(ctx context.Context, id chunk.ID) (*chunk.Buffer, error) {
	if _, err := n.ChunkLimits(id); err != nil {
		return nil, err
	}
	if n.closed.Load() {
		return n.in.ReadChunk(ctx, id)
	}

	if buf, ok := n.load(id); ok {
		metrics.RecordCacheLookup(TypeFSCache, true)
		return buf, nil
	}
	metrics.RecordCacheLookup(TypeFSCache, false)

	v, err, shared := n.group.Do(strconv.FormatUint(uint64(id), 10), func() (any, error) {
		// Another caller may have finished while this one waited.
		if buf, ok := n.load(id); ok {
			return buf, nil
		}
		n.setState(id, StateMaterializing)
		// Waiters share this read, so it must not end with the leader's ctx.
		buf, err := n.in.ReadChunk(context.WithoutCancel(ctx), id)
		if err != nil {
			n.setState(id, StateFailed)
			return nil, err
		}
		n.persist(id, buf)
		return buf, nil
	})
	if err != nil {
		return nil, cube.ChunkError(TypeFSCache, id, err)
	}
	buf := v.(*chunk.Buffer)
	if shared {
		buf = buf.Clone()
	}
	return buf, nil
}

// load returns the cached buffer of id. Unreadable files are deleted.
func (n *Node) load(id chunk.ID) (*chunk.Buffer, bool) {
	_, indexed := n.index.Get(id)
	if !indexed && !n.files.exists(id) {
		return nil, false
	}

	buf, size, err := n.files.read(id)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			n.cacheError("read", id, err)
			if rmErr := n.files.remove(id); rmErr != nil {
				n.cacheError("remove", id, rmErr)
			}
		}
		if rmErr := n.index.Remove(id); rmErr != nil {
			n.cacheError("index", id, rmErr)
		}
		n.setState(id, StateAbsent)
		return nil, false
	}
	if want := n.chunkShape(id); buf.Bands() != n.Bands().Count() || buf.Size() != want {
		n.cacheError("read", id, fmt.Errorf("%w: cached %d bands of %s, want %d bands of %s",
			chunk.ErrShapeMismatch, buf.Bands(), buf.Size(), n.Bands().Count(), want))
		_ = n.files.remove(id)
		_ = n.index.Remove(id)
		n.setState(id, StateAbsent)
		return nil, false
	}

	now := time.Now()
	if indexed {
		err = n.index.Touch(id, now)
	} else {
		err = n.index.Put(Entry{ID: id, Size: size, Accessed: now})
	}
	if err != nil {
		n.cacheError("index", id, err)
	}
	n.setState(id, StateCached)
	return buf, true
}

func (n *Node) chunkShape(id chunk.ID) chunk.Size {
	lim, err := n.ChunkLimits(id)
	if err != nil {
		return chunk.Size{}
	}
	return lim.Shape()
}

// persist writes buf as the file of id and enforces the size budget.
func (n *Node) persist(id chunk.ID, buf *chunk.Buffer) {
	if buf.Empty() {
		n.setState(id, StateAbsent)
		return
	}
	data, err := chunk.Marshal(buf)
	if err != nil {
		n.cacheError("encode", id, err)
		n.setState(id, StateAbsent)
		return
	}
	if n.opts.MaxSizeBytes > 0 && int64(len(data)) > n.opts.MaxSizeBytes {
		n.logger.Debug().
			Uint32("chunk_id", uint32(id)).
			Int("size", len(data)).
			Msg("Chunk exceeds cache budget, not stored")
		n.setState(id, StateAbsent)
		return
	}
	if err := n.files.write(id, data); err != nil {
		n.cacheError("write", id, err)
		n.setState(id, StateAbsent)
		return
	}
	if err := n.index.Put(Entry{ID: id, Size: int64(len(data)), Accessed: time.Now()}); err != nil {
		n.cacheError("index", id, err)
	}
	n.setState(id, StateCached)
	n.evict()
}

// evict removes least recently accessed chunks until the budget holds.
func (n *Node) evict() {
	n.evictMu.Lock()
	defer n.evictMu.Unlock()

	evicted := 0
	for n.opts.MaxSizeBytes > 0 && n.index.Bytes() > n.opts.MaxSizeBytes {
		e, ok := n.index.Oldest()
		if !ok {
			break
		}
		if err := n.files.remove(e.ID); err != nil {
			n.cacheError("evict", e.ID, err)
		}
		if err := n.index.Remove(e.ID); err != nil {
			n.cacheError("index", e.ID, err)
			break
		}
		n.setState(e.ID, StateAbsent)
		evicted++
	}

	if evicted > 0 {
		n.logger.Debug().Int("evicted", evicted).Int64("bytes", n.index.Bytes()).Msg("Evicted cached chunks")
	}
	metrics.RecordCacheEvictions(TypeFSCache, evicted)
	metrics.UpdateCacheUsage(TypeFSCache, n.index.Bytes(), n.index.Len())
}

func (n *Node) cacheError(op string, id chunk.ID, err error) {
	metrics.RecordCacheError(TypeFSCache, op)
	n.logger.Warn().
		Err(cube.CacheError(op, id, err)).
		Uint32("chunk_id", uint32(id)).
		Msg("Chunk cache operation failed, recomputing")
}

// Describe implements cube.Node. The worker id is not part of the
// description so every process resolves its own.
func (n *Node) Describe() cube.Description {
	return cube.Description{
		cube.KeyType:     TypeFSCache,
		"path":           n.opts.Root,
		"max_size_bytes": n.opts.MaxSizeBytes,
		"index":          n.opts.Index,
		cube.KeyParent:   n.in.Describe(),
	}
}

// Close releases the index. Later reads bypass the cache.
func (n *Node) Close() error {
	if n.closed.Swap(true) {
		return nil
	}
	return n.index.Close()
}

// Purge closes the node and deletes the worker directory.
func (n *Node) Purge() error {
	if err := n.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(n.files.dir); err != nil {
		return fmt.Errorf("remove cache directory: %w", err)
	}
	n.stateMu.Lock()
	clear(n.states)
	n.stateMu.Unlock()
	return nil
}
