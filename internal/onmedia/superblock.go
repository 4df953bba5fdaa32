package onmedia

import (
	"encoding/binary"
	"hash/crc32"
)

// Superblock layout constants, grounded on
// _examples/original_source/src/famfs_meta.h.
const (
	// SuperblockMagic is the fixed magic value stamped by mkfs.
	SuperblockMagic uint64 = 0x0000000009211963

	// CurrentVersion is the on-media version this build writes and reads.
	CurrentVersion uint64 = 47

	// CurrentOMFMajor and CurrentOMFMinor are the on-media-format version
	// mkfs stamps into a fresh superblock.
	CurrentOMFMajor uint64 = 1
	CurrentOMFMinor uint64 = 0

	// LogOffset is the fixed byte offset of the log from the start of
	// the primary DAX device.
	LogOffset uint64 = 2 * 1024 * 1024

	// SuperblockSize is the fixed size of the superblock region.
	SuperblockSize = LogOffset

	// MinLogLen is the minimum permitted log_len.
	MinLogLen uint64 = 8 * 1024 * 1024

	// AllocUnitSmall and AllocUnitLarge are the only two permitted
	// alloc_unit values.
	AllocUnitSmall uint64 = 4 * 1024
	AllocUnitLarge uint64 = 2 * 1024 * 1024

	// DaxdevNameLen is the fixed width of the primary daxdev name field.
	DaxdevNameLen = 64
)

// Superblock is the fixed 2MiB region at offset 0 of the primary DAX device.
//
// Field order here matches spec.md §3's Data Model declaration order, which
// is the on-media encode/decode order. The CRC is computed over a distinct,
// explicitly-ordered subsequence — see canonicalSuperblockBytes — not over
// this struct's encoded bytes directly.
type Superblock struct {
	Magic      uint64
	Version    uint64
	LogOffset  uint64
	LogLen     uint64
	AllocUnit  uint64
	FSUUID     [16]byte
	DevUUID    [16]byte
	SystemUUID [16]byte
	OMFMajor   uint64
	OMFMinor   uint64

	PrimaryDaxdevSize uint64
	PrimaryDaxdevName [DaxdevNameLen]byte

	CRC uint64
}

// EncodedSuperblockSize is the number of bytes Superblock.Encode produces.
// It is well within SuperblockSize; the remainder of the 2MiB region is
// reserved/zero.
const EncodedSuperblockSize = 8*9 + 16*3 + DaxdevNameLen

// Encode serializes the superblock to a fixed-size byte slice, computing
// and stamping CRC as it goes.
func (sb *Superblock) Encode() []byte {
	buf := make([]byte, EncodedSuperblockSize)
	encodeSuperblockFields(buf, sb)
	sb.CRC = CanonicalSuperblockCRC(sb)
	binary.LittleEndian.PutUint64(buf[EncodedSuperblockSize-8:], sb.CRC)
	return buf
}

func encodeSuperblockFields(buf []byte, sb *Superblock) {
	off := 0
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}

	putU64(sb.Magic)
	putU64(sb.Version)
	putU64(sb.LogOffset)
	putU64(sb.LogLen)
	putU64(sb.AllocUnit)
	copy(buf[off:off+16], sb.FSUUID[:])
	off += 16
	copy(buf[off:off+16], sb.DevUUID[:])
	off += 16
	copy(buf[off:off+16], sb.SystemUUID[:])
	off += 16
	putU64(sb.OMFMajor)
	putU64(sb.OMFMinor)
	putU64(sb.PrimaryDaxdevSize)
	copy(buf[off:off+DaxdevNameLen], sb.PrimaryDaxdevName[:])
	off += DaxdevNameLen
	// CRC field (last 8 bytes) is filled in by the caller.
	_ = off
}

// DecodeSuperblock parses a superblock from its encoded bytes. It does not
// validate the result; call CheckSuper for that.
func DecodeSuperblock(buf []byte) (Superblock, error) {
	if len(buf) < EncodedSuperblockSize {
		return Superblock{}, errBufferTooSmall
	}

	var sb Superblock

	off := 0
	getU64 := func() uint64 {
		v := binary.LittleEndian.Uint64(buf[off:])
		off += 8
		return v
	}

	sb.Magic = getU64()
	sb.Version = getU64()
	sb.LogOffset = getU64()
	sb.LogLen = getU64()
	sb.AllocUnit = getU64()
	copy(sb.FSUUID[:], buf[off:off+16])
	off += 16
	copy(sb.DevUUID[:], buf[off:off+16])
	off += 16
	copy(sb.SystemUUID[:], buf[off:off+16])
	off += 16
	sb.OMFMajor = getU64()
	sb.OMFMinor = getU64()
	sb.PrimaryDaxdevSize = getU64()
	copy(sb.PrimaryDaxdevName[:], buf[off:off+DaxdevNameLen])
	off += DaxdevNameLen
	sb.CRC = getU64()

	return sb, nil
}

// CanonicalSuperblockCRC computes CRC32 over exactly the wire-format
// constant byte sequence named in spec.md §4.A:
//
//	magic, version, log_offset, log_len, alloc_unit,
//	omf_major, omf_minor, fs_uuid, dev_uuid, system_uuid
//
// This sequence is NOT the same order as the on-media struct layout
// (Encode/DecodeSuperblock) — omf_major/omf_minor and the uuids trade places
// — by spec. Any divergence from this order invalidates every existing
// filesystem, so it must never be "simplified" to reuse Encode's byte order.
func CanonicalSuperblockCRC(sb *Superblock) uint64 {
	buf := make([]byte, 0, 8*7+16*3)
	buf = binary.LittleEndian.AppendUint64(buf, sb.Magic)
	buf = binary.LittleEndian.AppendUint64(buf, sb.Version)
	buf = binary.LittleEndian.AppendUint64(buf, sb.LogOffset)
	buf = binary.LittleEndian.AppendUint64(buf, sb.LogLen)
	buf = binary.LittleEndian.AppendUint64(buf, sb.AllocUnit)
	buf = binary.LittleEndian.AppendUint64(buf, sb.OMFMajor)
	buf = binary.LittleEndian.AppendUint64(buf, sb.OMFMinor)
	buf = append(buf, sb.FSUUID[:]...)
	buf = append(buf, sb.DevUUID[:]...)
	buf = append(buf, sb.SystemUUID[:]...)

	return uint64(crc32.ChecksumIEEE(buf))
}

// CheckSuper validates a decoded superblock against this build.
func CheckSuper(sb *Superblock) CheckResult {
	if sb.Magic != SuperblockMagic {
		return CheckInvalid
	}

	if sb.CRC != CanonicalSuperblockCRC(sb) {
		return CheckInvalid
	}

	if sb.AllocUnit != AllocUnitSmall && sb.AllocUnit != AllocUnitLarge {
		return CheckInvalid
	}

	if sb.Version != CurrentVersion {
		return CheckWrongVersion
	}

	return CheckOK
}

// IsMaster reports whether a host whose local system UUID is systemUUID is
// the master for the filesystem described by sb.
func IsMaster(sb *Superblock, systemUUID [16]byte) bool {
	return sb.SystemUUID == systemUUID
}
