// Package kmap is the famfs mapping-install capability named in spec.md §6:
// given a file descriptor, a size, and an extent list, install the
// file-to-memory mapping the kernel module or FUSE server enforces. The
// ioctl payload shape is specified here; its kernel-side implementation is
// explicitly out of scope (spec.md §1).
//
// Two ioctl generations coexist in the field: a V1 shape with a single flat
// extent list, and a V2 shape that also carries an interleaved extent. Each
// installer has a Probe method that reports which one a mount supports;
// internal/session does not call it, and RealInstaller.Install picks the V1
// command for a SIMPLE map and the V2 command for an INTERLEAVE map.
package kmap

import "errors"

var (
	errUnsupportedVersion = errors.New("kmap: mount does not support any known mapping ioctl")
	errNotInstalled       = errors.New("kmap: no mapping installed for this file")
	errTooManyExtents     = errors.New("kmap: extent list exceeds what this ioctl version can carry")
)
