// Package session implements the locked-log session of spec.md §4.D: it
// serializes allocation and log-append operations on one filesystem across
// every process on the master host, behind an exclusive file lock, and owns
// the bitmap and cursor state for its lifetime.
package session

import "errors"

var (
	errNotMaster     = errors.New("session: local host is not the master for this filesystem")
	errSuperblock    = errors.New("session: superblock is invalid")
	errLockTimeout   = errors.New("session: timed out acquiring log lock")
	errAlreadyClosed = errors.New("session: already closed")
)
