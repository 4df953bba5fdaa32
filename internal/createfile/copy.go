package createfile

import (
	"fmt"
	"io"
	"os"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/fslog"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/session"
)

// copyChunkSize bounds a single pread/pwrite chunk during Copy, the way
// spec.md §4.H's "chunked pread from src into the destination's mmap'd
// region" describes, rather than reading the whole source into memory.
const copyChunkSize = 4 << 20

// Copy implements spec.md §4.H's cp: mkfile sized to src's length, then a
// chunked copy from src into the destination's mapped region, with a final
// cache flush. Multiple Copy calls against the same sess reuse one
// session, the way a multi-file copy is meant to.
func Copy(sess *session.Session, src string, req Request) (onmedia.FileMeta, error) {
	in, err := os.Open(src)
	if err != nil {
		return onmedia.FileMeta{}, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return onmedia.FileMeta{}, err
	}
	req.Size = uint64(info.Size())

	out, meta, err := Mkfile(sess, req)
	if err != nil {
		return onmedia.FileMeta{}, err
	}
	defer out.Close()

	region, err := fslog.MapFile(out, int(req.Size))
	if err != nil {
		return onmedia.FileMeta{}, fmt.Errorf("mapping destination: %w", err)
	}
	defer fslog.Unmap(region)

	// Hide *os.File's WriterTo so io.CopyBuffer actually uses the buffer.
	src := struct{ io.Reader }{in}
	if _, err := io.CopyBuffer(&sliceWriter{buf: region}, src, make([]byte, copyChunkSize)); err != nil {
		return onmedia.FileMeta{}, fmt.Errorf("copying data: %w", err)
	}

	if err := fslog.Flush(region); err != nil {
		return onmedia.FileMeta{}, fmt.Errorf("flushing destination: %w", err)
	}

	return meta, nil
}

// sliceWriter adapts a fixed-size byte slice (a mapped region) to io.Writer
// for io.CopyBuffer, advancing an internal offset across successive writes.
type sliceWriter struct {
	buf []byte
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.buf, p)
	w.buf = w.buf[n:]
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
