package pcq

import (
	"encoding/binary"
	"hash/crc32"

	"golang.org/x/sys/unix"
)

// mapFile mmaps the first size bytes of fd, writable only if the caller's
// role is permitted to mutate this file — spec.md §4.I's "exactly one
// producer and one consumer per queue" is enforced by opening each file
// read-only on the side that must not write it, the same way
// pcq_lib.c's famfs_mmap_whole_file takes an explicit writable/readonly
// argument per (file, role) pair rather than always mapping read-write.
func mapFile(fd int, size int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(fd, 0, size, prot, unix.MAP_SHARED)
}

func unmapFile(region []byte) error {
	return unix.Munmap(region)
}

func flush(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return unix.Msync(region, unix.MS_SYNC)
}

func invalidate(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return unix.Msync(region, unix.MS_INVALIDATE)
}

// bucketPayloadSize returns the usable payload capacity of a bucket of the
// given size, per pcq_payload_size: the trailing seq+crc are not available
// to the caller.
func bucketPayloadSize(bucketSize uint64) uint64 {
	return bucketSize - bucketTrailerSize
}

// encodeBucket stamps seq and a CRC32 over payload∥seq into buf (which must
// be exactly bucketSize long, payload left-justified and zero-padded),
// following spec.md §4.I's Put step 2.
func encodeBucket(buf []byte, payload []byte, seq uint64) {
	payloadSize := bucketPayloadSize(uint64(len(buf)))
	n := copy(buf[:payloadSize], payload)
	for i := n; i < int(payloadSize); i++ {
		buf[i] = 0
	}

	seqOffset := payloadSize
	crcOffset := payloadSize + seqFieldSize

	binary.LittleEndian.PutUint64(buf[seqOffset:], seq)
	crc := crc32.ChecksumIEEE(buf[:crcOffset])
	binary.LittleEndian.PutUint32(buf[crcOffset:], crc)
}

// decodeBucket reports the payload, seq, and whether the CRC over
// payload∥seq matches the stored CRC.
func decodeBucket(buf []byte) (payload []byte, seq uint64, crcOK bool) {
	payloadSize := bucketPayloadSize(uint64(len(buf)))
	seqOffset := payloadSize
	crcOffset := payloadSize + seqFieldSize

	seq = binary.LittleEndian.Uint64(buf[seqOffset:])
	crc := crc32.ChecksumIEEE(buf[:crcOffset])
	stored := binary.LittleEndian.Uint32(buf[crcOffset:])

	return buf[:payloadSize], seq, crc == stored
}
