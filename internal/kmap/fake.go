package kmap

import (
	"sync"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

// FakeInstaller backs every test that exercises a mapping-install call
// without a real famfs/FUSE-famfs kernel backend, the same role
// pkg/fs.Chaos plays for ordinary file I/O.
type FakeInstaller struct {
	// ProbeVersion is returned by Probe. NewFakeInstaller sets it to V2
	// when passed VersionUnknown.
	ProbeVersion Version

	// FailInstall, if set, is returned by every Install call instead of
	// recording the mapping.
	FailInstall error

	mu        sync.Mutex
	installed map[uintptr]MapRequest
}

// NewFakeInstaller returns a FakeInstaller that reports version v (V2 if
// v == VersionUnknown).
func NewFakeInstaller(v Version) *FakeInstaller {
	if v == VersionUnknown {
		v = V2
	}
	return &FakeInstaller{ProbeVersion: v, installed: make(map[uintptr]MapRequest)}
}

func (f *FakeInstaller) Probe(uintptr) (Version, error) {
	return f.ProbeVersion, nil
}

func (f *FakeInstaller) Install(fd uintptr, req MapRequest) error {
	if f.FailInstall != nil {
		return f.FailInstall
	}

	if f.ProbeVersion == V1 && req.FMap.ExtType == onmedia.ExtInterleave {
		// V1 cannot carry an INTERLEAVE extent.
		return errTooManyExtents
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed[fd] = req

	return nil
}

func (f *FakeInstaller) Get(fd uintptr) (MapRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.installed[fd]
	if !ok {
		return MapRequest{}, errNotInstalled
	}

	return req, nil
}

// Installed reports whether a mapping has been recorded for fd, for tests
// that just want a boolean without unpacking the request.
func (f *FakeInstaller) Installed(fd uintptr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.installed[fd]
	return ok
}
