package replay

import (
	"os"
	"path/filepath"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/cxl-micron-reskit/famfs-sub000/pkg/fs"
)

// Mode selects whether Replay materializes real files/directories or
// writes shadow-tree YAML stubs.
type Mode int

const (
	ModeLive Mode = iota
	ModeShadow
)

// writeMaskClient is the set of mode bits stripped from a materialized
// file's permissions when the local host is a client rather than the
// master, unless the entry is flagged FileFlagAllHostsRW.
const writeMaskClient = 0222

// LogSource is the subset of *internal/fslog.Log Replay needs: reading
// entries and invalidating the cache before a retry. Replay never appends
// or writes through this interface.
type LogSource interface {
	Header() onmedia.LogHeader
	Entry(i uint64) (onmedia.LogEntry, error)
	Invalidate() error
}

// ShadowWriter is the subset of the shadow-tree codec Replay needs in
// ModeShadow. Its per-file/per-dir writes self-test a round trip
// (parse(emit(meta)) == meta) and report the outcome here so Replay can
// fold it into Stats.yaml_checked/yaml_errs without depending on the codec
// package's internals.
type ShadowWriter interface {
	WriteSuperblock(sb onmedia.Superblock) error
	WriteLogStub(h onmedia.LogHeader) error
	WriteFile(relpath string, meta onmedia.FileMeta) (roundTripOK bool, err error)
	WriteMkdir(relpath string, meta onmedia.MkdirMeta) error
}

// Stats is the statistics struct spec.md §4.E's replay emits.
type Stats struct {
	// Entries counts entries this walk successfully validated and
	// processed; a rejected entry falls into BadEntries instead, never
	// both. This mirrors logplay's own counter in the original
	// implementation (famfs_lib.c's log-replay loop only increments
	// n_entries past the validity check), not famfs_alloc.c's
	// build-bitmap variant, which counts every entry walked regardless
	// of validity — replay and bitmap-build track different things by
	// design.
	Entries    uint64
	BadEntries uint64

	FilesLogged  uint64
	FilesCreated uint64
	FilesExisted uint64

	DirsLogged  uint64
	DirsCreated uint64
	DirsExisted uint64

	FileErrs uint64
	DirErrs  uint64

	YamlErrs    uint64
	YamlChecked uint64
}

// Replay implements spec.md §4.E: validate the superblock and log header,
// then walk every logged entry, dispatching FILE and MKDIR entries onto
// targetRoot (in live mode, as real files/directories; in shadow mode, as
// YAML stubs via shadow). Replay is idempotent and never mutates log.
//
// installer is used only in live mode, to install a FILE entry's extent
// list onto the stub it creates. dryRun suppresses every filesystem
// mutation (stat/create/install calls still run in shadow mode's WriteFile/
// WriteMkdir, since those are metadata-only writes with no kernel mapping
// side effect); live-mode creation/mapping calls are skipped but still
// counted as "created" so a caller can preview what a real run would do.
func Replay(
	fsys fs.FS,
	targetRoot string,
	sb *onmedia.Superblock,
	log LogSource,
	isMaster bool,
	mode Mode,
	dryRun bool,
	installer kmap.MappingInstaller,
	shadow ShadowWriter,
) (Stats, error) {
	var stats Stats

	if onmedia.CheckSuper(sb) != onmedia.CheckOK {
		return stats, errBadSuperblock
	}

	header := log.Header()
	if !onmedia.CheckLogHeader(&header) {
		return stats, errBadLogHeader
	}

	if mode == ModeShadow {
		if err := shadow.WriteSuperblock(*sb); err != nil {
			return stats, err
		}
		if err := shadow.WriteLogStub(header); err != nil {
			return stats, err
		}
	}

	for i := uint64(0); i < header.NextIndex; i++ {
		entry, ok := readValidEntry(log, i)
		if !ok {
			stats.BadEntries++
			continue
		}
		stats.Entries++

		switch entry.Type {
		case onmedia.EntryFile:
			replayFile(fsys, targetRoot, &entry.File, isMaster, mode, dryRun, installer, shadow, &stats)
		case onmedia.EntryMkdir:
			replayMkdir(fsys, targetRoot, &entry.Mkdir, mode, dryRun, shadow, &stats)
		}
	}

	return stats, nil
}

// readValidEntry reads and validates the entry at i, retrying exactly once
// after a cache invalidation on failure, per spec.md §4.E step 4a.
func readValidEntry(log LogSource, i uint64) (onmedia.LogEntry, bool) {
	entry, err := log.Entry(i)
	if err == nil && onmedia.ValidateEntry(&entry, i) {
		return entry, true
	}

	_ = log.Invalidate()

	entry, err = log.Entry(i)
	if err == nil && onmedia.ValidateEntry(&entry, i) {
		return entry, true
	}

	return onmedia.LogEntry{}, false
}

func replayFile(
	fsys fs.FS,
	targetRoot string,
	meta *onmedia.FileMeta,
	isMaster bool,
	mode Mode,
	dryRun bool,
	installer kmap.MappingInstaller,
	shadow ShadowWriter,
	stats *Stats,
) {
	if err := onmedia.ValidateFileMeta(meta); err != nil {
		stats.FileErrs++
		return
	}
	stats.FilesLogged++

	if mode == ModeShadow {
		ok, err := shadow.WriteFile(meta.RelPath, *meta)
		stats.YamlChecked++
		if err != nil || !ok {
			stats.YamlErrs++
		}
		return
	}

	target := filepath.Join(targetRoot, meta.RelPath)

	info, statErr := fsys.Stat(target)
	if statErr == nil {
		if info.Mode().IsRegular() {
			stats.FilesExisted++
		} else {
			stats.FileErrs++
		}
		return
	}
	if !os.IsNotExist(statErr) {
		stats.FileErrs++
		return
	}

	if dryRun {
		stats.FilesCreated++
		return
	}

	mode64 := os.FileMode(meta.Mode)
	if !isMaster && meta.Flags&onmedia.FileFlagAllHostsRW == 0 {
		mode64 &^= writeMaskClient
	}

	f, err := fsys.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_EXCL, mode64)
	if err != nil {
		stats.FileErrs++
		return
	}

	if installer != nil {
		req := kmap.MapRequest{FileSize: meta.Size, FMap: meta.FMap}
		if err := installer.Install(f.Fd(), req); err != nil {
			f.Close()
			_ = fsys.Remove(target)
			stats.FileErrs++
			return
		}
	}

	f.Close()
	stats.FilesCreated++
}

func replayMkdir(
	fsys fs.FS,
	targetRoot string,
	meta *onmedia.MkdirMeta,
	mode Mode,
	dryRun bool,
	shadow ShadowWriter,
	stats *Stats,
) {
	if err := onmedia.ValidateMkdirMeta(meta); err != nil {
		stats.DirErrs++
		return
	}
	stats.DirsLogged++

	if mode == ModeShadow {
		if err := shadow.WriteMkdir(meta.RelPath, *meta); err != nil {
			stats.DirErrs++
		}
		return
	}

	target := filepath.Join(targetRoot, meta.RelPath)

	info, statErr := fsys.Stat(target)
	if statErr == nil {
		if info.IsDir() {
			stats.DirsExisted++
		} else {
			stats.DirErrs++
		}
		return
	}
	if !os.IsNotExist(statErr) {
		stats.DirErrs++
		return
	}

	if dryRun {
		stats.DirsCreated++
		return
	}

	if err := fsys.MkdirAll(target, os.FileMode(meta.Mode)); err != nil {
		stats.DirErrs++
		return
	}

	stats.DirsCreated++
}
