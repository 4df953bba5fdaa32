// Package mountutil resolves paths against famfs/FUSE-famfs mount points:
// ascending a path to find where a file lives relative to its mount, and
// parsing /proc/mounts to discover a mount's backing device and shadow
// directory.
package mountutil

import "errors"

var (
	errNotFound = errors.New("mountutil: relpath not found under any ancestor directory")
	errNotFamfs = errors.New("mountutil: path is not on a famfs or FUSE-famfs mount")
)
