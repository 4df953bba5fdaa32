// Package mkfs implements the one-time filesystem-initialization step
// spec.md's worked example ("mkfs then mount then mkfile") assumes but
// spec.md §4 leaves unlettered: writing a fresh superblock and an empty log
// into a mount point's .meta directory, grounded on
// _examples/original_source/src/famfs_lib.c's __famfs_mkfs.
package mkfs

import "errors"

var (
	errLogLenNotPowerOfTwo = errors.New("mkfs: log length must be a power of two")
	errLogLenTooSmall      = errors.New("mkfs: log length below the minimum")
	errBadAllocUnit        = errors.New("mkfs: alloc unit must be 4KiB or 2MiB")
	errAlreadyFormatted    = errors.New("mkfs: mount point already has a valid superblock (use Force)")
	errDeviceTooSmall      = errors.New("mkfs: primary daxdev size must be larger than superblock + log")
)
