package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/bitmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/fslog"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

// OpenForTesting builds a real Session rooted at dir: a real mmap'd log
// file under dir/.meta/.log and a real sidecar lock, without going through
// Open's mount/sysid resolution (a plain temp directory has no real mount
// boundary to ascend to). Other packages' tests use this to exercise
// Session-dependent code (internal/createfile, internal/replay callers)
// against real mmap and flock behavior instead of a hand-rolled double.
func OpenForTesting(dir string, devSize uint64, interleave bitmap.InterleaveParams, installer kmap.MappingInstaller) (*Session, error) {
	metaDirPath := filepath.Join(dir, metaDir)
	if err := os.MkdirAll(metaDirPath, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(metaDirPath, logFileName)
	const logLen = 1 << 20

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(logLen); err != nil {
		f.Close()
		return nil, err
	}

	region, err := fslog.MapFile(f, logLen)
	if err != nil {
		f.Close()
		return nil, err
	}

	log, err := fslog.Init(region, 1<<16)
	if err != nil {
		_ = fslog.Unmap(region)
		f.Close()
		return nil, err
	}

	mu := registryMutexFor(logPath)
	mu.Lock()

	lock, err := acquireLock(logPath, true, 0)
	if err != nil {
		mu.Unlock()
		_ = fslog.Unmap(region)
		f.Close()
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}

	if installer == nil {
		installer = kmap.NewFakeInstaller(kmap.V2)
	}

	return &Session{
		mountPoint: dir,
		role:       RoleMaster,
		sb: onmedia.Superblock{
			LogLen:            logLen,
			AllocUnit:         4096,
			PrimaryDaxdevSize: devSize,
		},
		log:        log,
		logFile:    f,
		logRegion:  region,
		lock:       lock,
		mu:         mu,
		interleave: interleave,
		installer:  installer,
	}, nil
}
