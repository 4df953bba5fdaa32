package shadow

import (
	"os"
	"path/filepath"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/cxl-micron-reskit/famfs-sub000/pkg/fs"
)

// metaDirName is the fixed subdirectory a shadow tree keeps its
// superblock/log stubs under, mirroring a real mount's layout.
const metaDirName = ".meta"

// Writer materializes shadow-tree documents under root via fsys. Its
// methods satisfy internal/replay's ShadowWriter interface structurally;
// this package does not import internal/replay to avoid a cycle.
type Writer struct {
	fsys fs.FS
	root string
}

// NewWriter returns a Writer rooted at root.
func NewWriter(fsys fs.FS, root string) *Writer {
	return &Writer{fsys: fsys, root: root}
}

func (w *Writer) WriteSuperblock(sb onmedia.Superblock) error {
	data, err := EmitSuperblockStub(sb)
	if err != nil {
		return err
	}

	if err := w.fsys.MkdirAll(filepath.Join(w.root, metaDirName), 0755); err != nil {
		return err
	}

	return w.fsys.WriteFile(filepath.Join(w.root, metaDirName, ".superblock"), data, 0644)
}

func (w *Writer) WriteLogStub(h onmedia.LogHeader) error {
	data, err := EmitLogStub(h)
	if err != nil {
		return err
	}

	if err := w.fsys.MkdirAll(filepath.Join(w.root, metaDirName), 0755); err != nil {
		return err
	}

	return w.fsys.WriteFile(filepath.Join(w.root, metaDirName, ".log"), data, 0644)
}

// WriteMkdir creates a real directory in the shadow tree mirroring the
// logged directory, so per-file YAML documents below it have somewhere to
// live. Unlike WriteFile, a directory carries no metadata payload worth a
// YAML stub of its own.
func (w *Writer) WriteMkdir(relpath string, md onmedia.MkdirMeta) error {
	return w.fsys.MkdirAll(filepath.Join(w.root, relpath), os.FileMode(md.Mode))
}

// WriteFile emits meta as the YAML document spec.md §4.F describes, at the
// shadow path mirroring relpath, self-testing the round trip first.
func (w *Writer) WriteFile(relpath string, meta onmedia.FileMeta) (bool, error) {
	data, err := EmitFile(meta)
	if err != nil {
		return false, err
	}

	ok := selfTestRoundTrip(meta, data)

	path := filepath.Join(w.root, relpath)
	if err := w.fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ok, err
	}

	if err := w.fsys.WriteFile(path, data, os.FileMode(meta.Mode)); err != nil {
		return ok, err
	}

	if !ok {
		return false, errRoundTripMismatch
	}

	return true, nil
}
