package session

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/bitmap"
)

// AllocCfgFileName is the optional interleave-parameters file spec.md §4.D
// step 5 and §9 "Expanded mount metadata" describe.
const AllocCfgFileName = ".alloc.cfg"

type allocCfgFile struct {
	InterleavedAlloc struct {
		NBuckets  uint64     `yaml:"nbuckets"`
		NStrips   uint64     `yaml:"nstrips"`
		ChunkSize sizeString `yaml:"chunk_size"`
	} `yaml:"interleaved_alloc"`
}

// loadAllocCfg reads {mpt}/.meta/.alloc.cfg if present and parses its
// interleave parameters. A missing file is not an error: it just means the
// session has no interleave params, and allocations default to contiguous.
func loadAllocCfg(mountPoint string) (bitmap.InterleaveParams, error) {
	path := filepath.Join(mountPoint, ".meta", AllocCfgFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a resolved mount point
	if err != nil {
		if os.IsNotExist(err) {
			return bitmap.InterleaveParams{}, nil
		}
		return bitmap.InterleaveParams{}, err
	}

	var cfg allocCfgFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return bitmap.InterleaveParams{}, err
	}

	return bitmap.InterleaveParams{
		NBuckets:  cfg.InterleavedAlloc.NBuckets,
		NStrips:   cfg.InterleavedAlloc.NStrips,
		ChunkSize: uint64(cfg.InterleavedAlloc.ChunkSize),
	}, nil
}
