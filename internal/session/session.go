package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/bitmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/fslog"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/mountutil"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/sysid"
)

// metaDir is the fixed subdirectory a famfs mount keeps its superblock and
// log under, relative to the mount point.
const metaDir = ".meta"

const (
	superblockFileName = ".superblock"
	logFileName        = ".log"
)

// Options configures Open. The zero value is the common case: blocking
// lock acquisition, no worker pool, default installer resolution.
type Options struct {
	// NonBlockingLock makes Open fail immediately rather than wait if
	// another process already holds the log lock.
	NonBlockingLock bool

	// LockTimeout bounds a blocking lock wait. Zero means
	// DefaultLockTimeout.
	LockTimeout time.Duration

	// WantThreads, if non-zero, sizes a worker pool the session owns for
	// the caller's use (e.g. parallel multi-file copy).
	WantThreads int

	// Installer overrides mapping-installation, primarily for tests.
	// A nil value resolves the real platform installer.
	Installer kmap.MappingInstaller

	// SystemUUIDPath overrides sysid.DefaultPath, primarily for tests.
	SystemUUIDPath string
}

// Session is the locked, mapped handle on one famfs filesystem that
// spec.md §4.D describes: it owns the exclusive log lock, the log mapping,
// the lazily-built bitmap, and the allocation cursor for its lifetime.
type Session struct {
	mountPoint string
	role       Role

	sb  onmedia.Superblock
	log *fslog.Log

	logFile   *os.File
	logRegion []byte
	lock      *fileLock
	mu        *sync.Mutex

	interleave bitmap.InterleaveParams

	bm     *bitmap.Bitmap
	bmOnce bool

	cursor uint64

	installer kmap.MappingInstaller

	pool *workerPool

	closed bool
}

// Role identifies whether this host is the master or a client for the
// filesystem a Session is open on.
type Role int

const (
	RoleClient Role = iota
	RoleMaster
)

// MountPoint reports the resolved mount point this session is open on.
func (s *Session) MountPoint() string { return s.mountPoint }

// Role reports whether the local host is master or client for this
// filesystem.
func (s *Session) Role() Role { return s.role }

// Superblock returns the validated superblock this session opened with.
func (s *Session) Superblock() onmedia.Superblock { return s.sb }

// Open implements spec.md §4.D's session_open: resolve path to its mount
// point, confirm the superblock is valid, determine the local role, acquire
// the exclusive log lock, map and invalidate the log, and optionally load
// interleave parameters.
func Open(path string, opts Options) (*Session, error) {
	mountPoint, err := mountutil.FindMountPoint(path)
	if err != nil {
		return nil, fmt.Errorf("resolving mount point: %w", err)
	}

	sb, err := readSuperblock(mountPoint)
	if err != nil {
		return nil, err
	}

	uuidPath := opts.SystemUUIDPath
	if uuidPath == "" {
		uuidPath = sysid.DefaultPath
	}

	systemUUID, err := sysid.Resolve(uuidPath)
	if err != nil {
		return nil, fmt.Errorf("resolving system uuid: %w", err)
	}

	role, err := resolveRole(&sb, systemUUID)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(mountPoint, metaDir, logFileName)

	mu := registryMutexFor(logPath)
	mu.Lock()

	timeout := opts.LockTimeout
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}

	lock, err := acquireLock(logPath, opts.NonBlockingLock, timeout)
	if err != nil {
		mu.Unlock()
		return nil, err
	}

	logFile, region, log, err := mapLog(logPath, sb.LogLen)
	if err != nil {
		lock.release()
		mu.Unlock()
		return nil, err
	}

	if err := log.Invalidate(); err != nil {
		_ = fslog.Unmap(region)
		logFile.Close()
		lock.release()
		mu.Unlock()
		return nil, fmt.Errorf("invalidating log mapping: %w", err)
	}

	interleave, err := loadAllocCfg(mountPoint)
	if err != nil {
		_ = fslog.Unmap(region)
		logFile.Close()
		lock.release()
		mu.Unlock()
		return nil, fmt.Errorf("loading alloc.cfg: %w", err)
	}

	installer := opts.Installer
	if installer == nil {
		installer = defaultInstaller()
	}

	s := &Session{
		mountPoint: mountPoint,
		role:       role,
		sb:         sb,
		log:        log,
		logFile:    logFile,
		logRegion:  region,
		lock:       lock,
		mu:         mu,
		interleave: interleave,
		installer:  installer,
	}

	if opts.WantThreads > 0 {
		s.pool = newWorkerPool(opts.WantThreads)
	}

	return s, nil
}

// resolveRole implements spec.md §4.D step 2: a Session is the master's
// exclusive mutation handle, so a host whose system UUID doesn't match the
// superblock's is refused here rather than handed a writable Session it
// isn't entitled to — spec §7's ROLE_MISMATCH, exercised by a client's
// session_open call in Scenario 4. A client that only needs to read
// log/superblock state (e.g. to replay into its local mount) uses
// internal/replay's own LogSource, never this type.
func resolveRole(sb *onmedia.Superblock, systemUUID [16]byte) (Role, error) {
	if onmedia.IsMaster(sb, systemUUID) {
		return RoleMaster, nil
	}
	return RoleClient, errNotMaster
}

func readSuperblock(mountPoint string) (onmedia.Superblock, error) {
	path := filepath.Join(mountPoint, metaDir, superblockFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path derives from a resolved mount point
	if err != nil {
		return onmedia.Superblock{}, fmt.Errorf("reading superblock: %w", err)
	}

	sb, err := onmedia.DecodeSuperblock(data)
	if err != nil {
		return onmedia.Superblock{}, fmt.Errorf("decoding superblock: %w", err)
	}

	if onmedia.CheckSuper(&sb) != onmedia.CheckOK {
		return onmedia.Superblock{}, errSuperblock
	}

	return sb, nil
}

func mapLog(logPath string, logLen uint64) (*os.File, []byte, *fslog.Log, error) {
	f, err := os.OpenFile(logPath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	region, err := fslog.MapFile(f, int(logLen))
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("mapping log file: %w", err)
	}

	log, err := fslog.Wrap(region)
	if err != nil {
		_ = fslog.Unmap(region)
		f.Close()
		return nil, nil, nil, err
	}

	return f, region, log, nil
}

// Close implements spec.md §4.D's session_close(abort?). On abort, a
// pending worker pool is torn down immediately rather than drained.
func (s *Session) Close(abort bool) error {
	if s.closed {
		return errAlreadyClosed
	}
	s.closed = true

	if s.pool != nil {
		if abort {
			s.pool.abort()
		} else {
			s.pool.wait()
		}
	}

	var firstErr error
	if err := fslog.Unmap(s.logRegion); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.lock.release()
	s.mu.Unlock()

	s.bm = nil

	return firstErr
}

// bitmapBuild lazily constructs the session's bitmap from the current log
// contents, the way spec.md §4.D requires: built once, on first allocation,
// and retained for the session's lifetime.
func (s *Session) bitmapBuild() (*bitmap.Bitmap, error) {
	if s.bmOnce {
		return s.bm, nil
	}

	h := s.log.Header()
	entries := make([]onmedia.LogEntry, s.log.NEntries())
	for i := uint64(0); i < h.NextIndex && i < uint64(len(entries)); i++ {
		e, err := s.log.Entry(i)
		if err != nil {
			return nil, fmt.Errorf("reading log entry %d: %w", i, err)
		}
		entries[i] = e
	}

	bm, _ := bitmap.Build(entries, h.NextIndex, s.sb.LogLen, s.sb.AllocUnit, s.sb.PrimaryDaxdevSize)
	s.bm = bm
	s.bmOnce = true

	return bm, nil
}

// AllocContiguous allocates size bytes as a single contiguous run, advancing
// the session's persistent cursor.
func (s *Session) AllocContiguous(size uint64) (onmedia.FileMap, error) {
	bm, err := s.bitmapBuild()
	if err != nil {
		return onmedia.FileMap{}, err
	}

	offset, err := bm.AllocContiguous(size, &s.cursor, 0)
	if err != nil {
		return onmedia.FileMap{}, err
	}

	return onmedia.FileMap{
		ExtType: onmedia.ExtSimple,
		Simple: []onmedia.SimpleExtent{
			{DevIndex: 0, Offset: offset, Length: roundUpSession(size, bm.AllocUnit())},
		},
	}, nil
}

// AllocInterleaved allocates size bytes striped across the session's
// configured buckets, resetting the cursor to 0 first per spec.md §4.D's
// cursor-reset rule.
func (s *Session) AllocInterleaved(size uint64) (onmedia.FileMap, error) {
	bm, err := s.bitmapBuild()
	if err != nil {
		return onmedia.FileMap{}, err
	}

	s.cursor = 0
	return bitmap.AllocInterleaved(bm, s.interleave, size, s.sb.PrimaryDaxdevSize, &s.cursor)
}

// Alloc dispatches to interleaved or contiguous allocation depending on
// whether the session has interleave parameters configured.
func (s *Session) Alloc(size uint64) (onmedia.FileMap, error) {
	if s.interleave.IsZero() {
		return s.AllocContiguous(size)
	}
	return s.AllocInterleaved(size)
}

// Append writes entry to the log and flushes the mapping so other hosts
// observe it.
func (s *Session) Append(entry onmedia.LogEntry) (onmedia.LogEntry, error) {
	written, err := s.log.Append(entry)
	if err != nil {
		return onmedia.LogEntry{}, err
	}

	if err := s.log.Flush(); err != nil {
		return onmedia.LogEntry{}, err
	}

	return written, nil
}

// Installer returns the mapping installer this session resolved at Open.
func (s *Session) Installer() kmap.MappingInstaller { return s.installer }

// LogEntry returns the entry at index i, for callers (tests, replay
// wiring) that need to read back what Append committed.
func (s *Session) LogEntry(i uint64) (onmedia.LogEntry, error) {
	return s.log.Entry(i)
}

// LogHeader returns the log's current header, primarily so tests can
// check NextIndex/NextSeqnum after an Append.
func (s *Session) LogHeader() onmedia.LogHeader {
	return s.log.Header()
}

func roundUpSession(size, allocUnit uint64) uint64 {
	if size == 0 {
		return 0
	}
	return ((size + allocUnit - 1) / allocUnit) * allocUnit
}
