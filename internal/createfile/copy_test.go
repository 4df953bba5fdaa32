package createfile_test

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/bitmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/createfile"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/kmap"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/session"
)

func TestCopyReproducesSourceBytesExactly(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "source.bin")

	// Not a multiple of the chunk size, so the copy loop's final partial
	// chunk is exercised too.
	const size = (4 << 20) + 12345
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(srcPath, data, 0644))

	mountDir := t.TempDir()
	s, err := session.OpenForTesting(mountDir, 256<<20, bitmap.InterleaveParams{}, kmap.NewFakeInstaller(kmap.V2))
	require.NoError(t, err)
	defer s.Close(false)

	req := createfile.Request{
		FullPath: filepath.Join(mountDir, "dest.bin"),
		Mode:     0644,
	}

	meta, err := createfile.Copy(s, srcPath, req)
	require.NoError(t, err)
	require.Equal(t, uint64(size), meta.Size)

	got, err := os.ReadFile(req.FullPath)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCopySetsSizeFromSourceRegardlessOfRequestSize(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "source.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("hello world"), 0644))

	mountDir := t.TempDir()
	s, err := session.OpenForTesting(mountDir, 64<<20, bitmap.InterleaveParams{}, kmap.NewFakeInstaller(kmap.V2))
	require.NoError(t, err)
	defer s.Close(false)

	req := createfile.Request{
		FullPath: filepath.Join(mountDir, "dest.bin"),
		Mode:     0644,
		Size:     999999, // should be overwritten by the source's actual size
	}

	meta, err := createfile.Copy(s, srcPath, req)
	require.NoError(t, err)
	require.Equal(t, uint64(len("hello world")), meta.Size)
}
