//go:build linux

package session

import "github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"

func defaultInstaller() kmap.MappingInstaller {
	return &kmap.RealInstaller{}
}
