// Package fslog wraps a memory-mapped famfs log region — header plus a
// contiguous entry array — exposing the append and flush discipline spec.md
// §4.C describes. It never copies the region wholesale; callers mmap the
// bytes once (via internal/session) and this package decodes/encodes
// directly against that backing slice.
package fslog

import "errors"

var (
	errLogFull         = errors.New("fslog: log is full")
	errIndexOutOfRange = errors.New("fslog: entry index out of range")
	errRegionTooSmall  = errors.New("fslog: mapped region smaller than log header")
)
