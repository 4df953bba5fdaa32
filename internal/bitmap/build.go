package bitmap

import "github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"

// Stats holds the counters a bitmap build accumulates across the whole log:
// entries walked, bad entries, files and directories logged, collisions and
// space accounting. Build returns them once, after the walk; per-entry
// values are not reported.
type Stats struct {
	NEntries    uint64
	BadEntries  uint64
	FilesLogged uint64
	DirsLogged  uint64

	Collisions     uint64
	SumFileSizes   uint64
	AllocatedBytes uint64
}

// SpaceAmp is AllocatedBytes/SumFileSizes, the space-amplification ratio
// famfs_alloc.c reports; returns 0 when no files have been logged yet.
func (s Stats) SpaceAmp() float64 {
	if s.SumFileSizes == 0 {
		return 0
	}
	return float64(s.AllocatedBytes) / float64(s.SumFileSizes)
}

// Build replays entries[0:nextIndex] into a fresh bitmap sized for devSize
// at allocUnit granularity, pre-marking the superblock+log region the way
// the log itself never logs. Malformed entries (bad seqnum or CRC) are
// counted and skipped rather than aborting the build — building twice from
// the same log must yield identical bitmaps and stats.
func Build(entries []onmedia.LogEntry, nextIndex uint64, logLen, allocUnit, devSize uint64) (*Bitmap, Stats) {
	bm := New(devSize, allocUnit)

	var stats Stats

	_, reserved := bm.setRange(0, onmedia.SuperblockSize+logLen)
	stats.AllocatedBytes += reserved

	for i := uint64(0); i < nextIndex && i < uint64(len(entries)); i++ {
		e := entries[i]
		stats.NEntries++

		if !onmedia.ValidateEntry(&e, i) {
			stats.BadEntries++
			continue
		}

		switch e.Type {
		case onmedia.EntryFile:
			stats.FilesLogged++
			stats.SumFileSizes += e.File.Size
			applyFileMap(bm, &e.File.FMap, &stats)
		case onmedia.EntryMkdir:
			stats.DirsLogged++
		}
	}

	return bm, stats
}

func applyFileMap(bm *Bitmap, fm *onmedia.FileMap, stats *Stats) {
	switch fm.ExtType {
	case onmedia.ExtSimple:
		for _, ext := range fm.Simple {
			markExtent(bm, ext, stats)
		}
	case onmedia.ExtInterleave:
		for _, ext := range fm.Interleaved.Strips {
			markExtent(bm, ext, stats)
		}
	}
}

func markExtent(bm *Bitmap, ext onmedia.SimpleExtent, stats *Stats) {
	collisions, allocated := bm.setRange(ext.Offset, ext.Length)
	stats.Collisions += collisions
	stats.AllocatedBytes += allocated
}
