// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

/*
Package fscache provides a cube node that keeps the chunks of its input cube
on local disk.

The node has the geometry of its input. The first read of a chunk is passed
to the input and the result is written to <root>/<worker-id>/<chunk-id>;
later reads decode that file instead. Concurrent reads of one chunk collapse
into a single input read.

# Worker identity

Processes that share a worker id share cached files. The id comes from, in
order: Options.WorkerID, the CUBEFLOW_WORKER_ID environment variable, the
WORKER_ID environment variable, and finally a random 8 character token, so
independent processes never collide by accident.

# Size budget

After every write the node evicts the least recently accessed chunks until
the total size of its files is at most Options.MaxSizeBytes. A chunk larger
than the whole budget is returned but never written. A budget of 0 leaves
the cache unbounded.

# Index

Access order is kept in an Index. MemoryIndex lives only as long as the
process; BadgerIndex stores access times in a Badger database under the
worker directory so the eviction order survives restarts. Badger locks its
directory, so when a second node with the same worker id opens the cache
while the first is still open, it falls back to a MemoryIndex over the same
files. Either way, files already present under the worker directory are
adopted on open, and a read that misses the index checks the disk before
recomputing.

# Failures

Writing, reading and decoding cache files never fails a chunk. Problems are
logged, counted in cache_errors_total, and the chunk is recomputed from the
input. Corrupt files are deleted.
*/
package fscache
