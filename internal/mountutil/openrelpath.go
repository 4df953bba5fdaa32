package mountutil

import (
	"os"
	"path/filepath"
	"syscall"
)

// OpenOptions configures OpenRelpath.
type OpenOptions struct {
	// WantReadOnly opens the discovered file O_RDONLY instead of O_RDWR.
	WantReadOnly bool

	// Lock acquires a non-blocking exclusive flock on the discovered file
	// before returning it.
	Lock bool

	// RequireFamfsMount fails unless the discovered mount point is a
	// famfs or FUSE-famfs mount.
	RequireFamfsMount bool
}

// Result is what OpenRelpath found.
type Result struct {
	File       *os.File
	MountPoint string
	Kind       MountKind
}

// OpenRelpath implements spec.md §4.G's open_relpath: canonicalize path,
// ascend through parent directories until an existing real path is found,
// then ascend again testing at each level whether {rpath}/{relpath} exists
// as a regular file.
func OpenRelpath(path, relpath string, opts OpenOptions) (*Result, error) {
	start, err := ascendToExisting(path)
	if err != nil {
		return nil, err
	}

	cur := start
	for {
		candidate := filepath.Join(cur, relpath)

		info, statErr := os.Stat(candidate)
		if statErr == nil && info.Mode().IsRegular() {
			return openFound(candidate, cur, opts)
		}

		parent := parentDir(cur)
		if parent == cur {
			return nil, errNotFound
		}
		cur = parent
	}
}

func openFound(candidate, mountPoint string, opts OpenOptions) (*Result, error) {
	flags := os.O_RDWR
	if opts.WantReadOnly {
		flags = os.O_RDONLY
	}

	f, err := os.OpenFile(candidate, flags, 0)
	if err != nil {
		return nil, err
	}

	if opts.Lock {
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			f.Close()
			return nil, err
		}
	}

	kind, err := fileIsFamfs(candidate)
	if err != nil && opts.RequireFamfsMount {
		f.Close()
		return nil, err
	}

	if opts.RequireFamfsMount && kind == NotFamfs {
		f.Close()
		return nil, errNotFamfs
	}

	return &Result{File: f, MountPoint: mountPoint, Kind: kind}, nil
}
