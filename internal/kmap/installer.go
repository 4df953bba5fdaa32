package kmap

import "github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"

// Version identifies which mapping-ioctl generation a mount supports.
type Version int

const (
	VersionUnknown Version = iota
	V1                      // flat extent list only (no interleave)
	V2                      // flat or interleaved extent list
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

// MapRequest is the mapping payload for one file: its logical size and the
// extent list that backs it, in the on-media FileMap shape so callers don't
// maintain a second extent representation.
type MapRequest struct {
	FileSize uint64
	FMap     onmedia.FileMap
	DaxDev   string
}

// MappingInstaller is the capability spec.md §6 describes: probe which
// ioctl generation a mount speaks, install a mapping on an open file
// descriptor, and read back what's currently installed.
type MappingInstaller interface {
	// Probe determines which ioctl generation fd's mount supports.
	Probe(fd uintptr) (Version, error)

	// Install installs req's extent list as fd's backing mapping.
	Install(fd uintptr, req MapRequest) error

	// Get reads back the mapping currently installed on fd.
	Get(fd uintptr) (MapRequest, error)
}
