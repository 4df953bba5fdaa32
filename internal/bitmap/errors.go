// Package bitmap builds and mutates the allocation bitmap that backs famfs's
// space allocator: replaying a log into a bit-per-alloc_unit map, handing out
// contiguous and interleaved extents from it, and freeing them.
//
// Nothing here touches mmap or a log's on-media bytes directly; callers
// (internal/session, internal/createfile) decode log entries with
// internal/onmedia and pass them in.
package bitmap

import "errors"

var (
	errNoSpace          = errors.New("bitmap: no space available")
	errOffsetZero       = errors.New("bitmap: allocation would return offset 0")
	errBitAlreadyClear  = errors.New("bitmap: free of an already-clear bit")
	errBadChunkSize     = errors.New("bitmap: chunk_size must be a power of two multiple of alloc_unit")
	errTooManyStrips    = errors.New("bitmap: nstrips exceeds nbuckets")
	errTooManyBuckets   = errors.New("bitmap: nbuckets exceeds FAMFS_MAX_NBUCKETS")
	errBucketTooSmall   = errors.New("bitmap: bucket size below 1 GiB minimum")
	errZeroBuckets      = errors.New("bitmap: nbuckets must be nonzero")
)
