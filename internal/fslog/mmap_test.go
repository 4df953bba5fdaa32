package fslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/stretchr/testify/require"
)

func TestMapFileRoundTripsThroughAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	const nslots = 4
	size := onmedia.LogHeaderEncodedSize + nslots*onmedia.LogEntryEncodedSize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Truncate(int64(size)))

	region, err := MapFile(f, size)
	require.NoError(t, err)
	defer Unmap(region)

	l, err := Init(region, nslots-1)
	require.NoError(t, err)

	_, err = l.Append(onmedia.LogEntry{Type: onmedia.EntryMkdir, Mkdir: onmedia.MkdirMeta{RelPath: "a"}})
	require.NoError(t, err)
	require.NoError(t, l.Flush())

	// Re-map the same file independently (simulating a second process) and
	// confirm the appended entry is visible.
	region2, err := MapFile(f, size)
	require.NoError(t, err)
	defer Unmap(region2)

	l2, err := Wrap(region2)
	require.NoError(t, err)
	require.NoError(t, l2.Invalidate())

	e, err := l2.Entry(0)
	require.NoError(t, err)
	require.Equal(t, "a", e.Mkdir.RelPath)
	require.True(t, onmedia.ValidateEntry(&e, 0))
}
