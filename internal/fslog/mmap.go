package fslog

import (
	"os"

	"golang.org/x/sys/unix"
)

// MapFile memory-maps the first size bytes of f read-write, shared across
// processes — the cross-host visibility channel spec.md §5 builds its cache
// discipline on top of.
func MapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Unmap releases a region obtained from MapFile.
func Unmap(region []byte) error {
	return unix.Munmap(region)
}

// Flush makes all of a process's writes to region visible to other mappers,
// the "flush the entire log from the CPU cache" step spec.md §4.C and §5
// require on every append.
func Flush(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return unix.Msync(region, unix.MS_SYNC)
}

// Invalidate discards this process's cached view of region so a subsequent
// read observes other hosts' writes, the "invalidate before re-reading"
// half of spec.md §5's cache-coherence contract.
func Invalidate(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return unix.Msync(region, unix.MS_INVALIDATE)
}
