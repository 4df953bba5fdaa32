package createfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/session"
)

// Request describes one file to create.
type Request struct {
	FullPath string
	Mode     os.FileMode
	UID, GID uint32
	Size     uint64

	// ForceInterleave allocates via the interleaved allocator even if the
	// session has no default interleave parameters configured, per
	// spec.md §4.H's "interleaved if the session has interleave params or
	// the caller supplies them".
	ForceInterleave bool
}

// Mkfile implements spec.md §4.H's mkfile pipeline. On success it returns
// the open file (positioned for sequential writes, e.g. by Copy) and the
// metadata that was logged for it.
//
// If fullpath already exists as a regular file of exactly req.Size, Mkfile
// treats this as a no-op and returns it open rather than re-allocating —
// this is what makes a multi-file copy restartable.
func Mkfile(sess *session.Session, req Request) (*os.File, onmedia.FileMeta, error) {
	relpath, err := resolveRelpath(sess.MountPoint(), req.FullPath)
	if err != nil {
		return nil, onmedia.FileMeta{}, err
	}

	if f, meta, ok, err := reuseExisting(req); ok || err != nil {
		return f, meta, err
	}

	fm, err := allocate(sess, req)
	if err != nil {
		return nil, onmedia.FileMeta{}, fmt.Errorf("allocating space: %w", err)
	}

	f, err := createStub(req)
	if err != nil {
		return nil, onmedia.FileMeta{}, fmt.Errorf("creating stub file: %w", err)
	}

	installer := sess.Installer()
	if installer != nil {
		if err := installer.Install(f.Fd(), kmap.MapRequest{FileSize: req.Size, FMap: fm}); err != nil {
			f.Close()
			_ = os.Remove(req.FullPath)
			return nil, onmedia.FileMeta{}, fmt.Errorf("installing mapping: %w", err)
		}
	}

	meta := onmedia.FileMeta{
		Size:    req.Size,
		UID:     req.UID,
		GID:     req.GID,
		Mode:    uint32(req.Mode),
		RelPath: relpath,
		FMap:    fm,
	}

	if _, err := sess.Append(onmedia.LogEntry{Type: onmedia.EntryFile, File: meta}); err != nil {
		// The commit point failed: the stub exists and is mapped, but no
		// log entry records it. Per spec.md §4.H this is safely retryable
		// (no log evidence exists yet), so the caller is free to call
		// Mkfile again; it is not unwound here.
		return f, meta, fmt.Errorf("appending log entry: %w", err)
	}

	return f, meta, nil
}

func resolveRelpath(mountPoint, fullpath string) (string, error) {
	rel, err := filepath.Rel(mountPoint, fullpath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errNotUnderMount
	}
	return rel, nil
}

func reuseExisting(req Request) (*os.File, onmedia.FileMeta, bool, error) {
	info, err := os.Stat(req.FullPath)
	if os.IsNotExist(err) {
		return nil, onmedia.FileMeta{}, false, validateParent(req.FullPath)
	}
	if err != nil {
		return nil, onmedia.FileMeta{}, false, err
	}

	if !info.Mode().IsRegular() || uint64(info.Size()) != req.Size {
		return nil, onmedia.FileMeta{}, false, errExistsWrongShape
	}

	f, err := os.OpenFile(req.FullPath, os.O_RDWR, 0)
	if err != nil {
		return nil, onmedia.FileMeta{}, false, err
	}

	return f, onmedia.FileMeta{Size: req.Size, Mode: uint32(req.Mode), UID: req.UID, GID: req.GID}, true, nil
}

func validateParent(fullpath string) error {
	parent := filepath.Dir(fullpath)

	info, err := os.Stat(parent)
	if os.IsNotExist(err) {
		return errParentMissing
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errParentNotDir
	}
	return nil
}

func allocate(sess *session.Session, req Request) (onmedia.FileMap, error) {
	if req.ForceInterleave {
		return sess.AllocInterleaved(req.Size)
	}
	return sess.Alloc(req.Size)
}

func createStub(req Request) (*os.File, error) {
	f, err := os.OpenFile(req.FullPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, req.Mode)
	if err != nil {
		return nil, err
	}

	if err := f.Truncate(int64(req.Size)); err != nil {
		f.Close()
		_ = os.Remove(req.FullPath)
		return nil, err
	}

	if err := os.Chown(req.FullPath, int(req.UID), int(req.GID)); err != nil {
		f.Close()
		_ = os.Remove(req.FullPath)
		return nil, err
	}

	return f, nil
}
