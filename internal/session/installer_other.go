//go:build !linux

package session

import "github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"

// defaultInstaller has no real backend off Linux; a Session built here must
// be given an explicit Options.Installer (e.g. a FakeInstaller in tests).
func defaultInstaller() kmap.MappingInstaller {
	return kmap.NewFakeInstaller(kmap.VersionUnknown)
}
