//go:build linux

package kmap

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

// ioctl magic/command numbers, grounded on tagfs_ioctl.h's MCIOC_MAGIC='u'
// and MCIOC_MAP_CREATE = _IOWR(MCIOC_MAGIC, 1, struct tagfs_ioc_map). V2
// reuses the magic with the next command number for the wider struct that
// adds interleaved-extent support.
const (
	mapMagic = 'u'

	mapCreateV1Nr = 1
	mapCreateV2Nr = 2
	mapGetNr      = 3

	iocDirNone  = 0
	iocDirWrite = 1
	iocDirRead  = 2
)

func iocNumber(dir, typ, nr, size uintptr) uintptr {
	return (dir << 30) | (typ << 8) | nr | (size << 16)
}

// extentV1 mirrors struct tagfs_user_extent: a flat {offset, len} pair with
// no device index or interleave metadata.
type extentV1 struct {
	Offset uint64
	Len    uint64
}

// mapIocV1 mirrors struct tagfs_ioc_map's fixed-size fields. The variable
// length extent list is passed out-of-band via ExtListPtr/ExtListCount,
// matching the kernel struct's pointer-and-count shape.
type mapIocV1 struct {
	ExtentType   uint32
	_            uint32 // padding to match C struct alignment
	FileSize     uint64
	ExtListCount uint64
	ExtListPtr   uint64
	DaxDevName   [32]byte
}

const sizeofMapIocV1 = 4 + 4 + 8 + 8 + 8 + 32

// mapIocV2 extends mapIocV1 with an interleave descriptor so a single
// ioctl command can carry either a flat or a striped extent list.
type mapIocV2 struct {
	mapIocV1
	NStrips   uint64
	ChunkSize uint64
}

const sizeofMapIocV2 = sizeofMapIocV1 + 16

// RealInstaller issues the mapping ioctl against a real famfs or
// FUSE-famfs file descriptor.
type RealInstaller struct{}

func (RealInstaller) Probe(fd uintptr) (Version, error) {
	// A zero-length V2 query; the kernel/FUSE server rejects the command
	// number outright (ENOTTY) if it doesn't implement V2.
	req := mapIocV2{}
	cmd := iocNumber(iocDirRead, mapMagic, mapGetNr, sizeofMapIocV2)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(unsafe.Pointer(&req)))
	if errno == 0 {
		return V2, nil
	}

	cmd = iocNumber(iocDirRead, mapMagic, mapCreateV1Nr, sizeofMapIocV1)
	_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(unsafe.Pointer(&req.mapIocV1)))
	if errno == 0 {
		return V1, nil
	}

	return VersionUnknown, errUnsupportedVersion
}

func (RealInstaller) Install(fd uintptr, req MapRequest) error {
	switch req.FMap.ExtType {
	case onmedia.ExtSimple:
		return installSimple(fd, req)
	case onmedia.ExtInterleave:
		return installInterleaved(fd, req)
	default:
		return errTooManyExtents
	}
}

func installSimple(fd uintptr, req MapRequest) error {
	extents := make([]extentV1, len(req.FMap.Simple))
	for i, e := range req.FMap.Simple {
		extents[i] = extentV1{Offset: e.Offset, Len: e.Length}
	}

	ioc := mapIocV1{
		ExtentType:   uint32(onmedia.ExtSimple),
		FileSize:     req.FileSize,
		ExtListCount: uint64(len(extents)),
	}
	copy(ioc.DaxDevName[:], req.DaxDev)

	if len(extents) > 0 {
		ioc.ExtListPtr = uint64(uintptr(unsafe.Pointer(&extents[0])))
	}

	cmd := iocNumber(iocDirWrite|iocDirRead, mapMagic, mapCreateV1Nr, sizeofMapIocV1)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(unsafe.Pointer(&ioc)))
	if errno != 0 {
		return errno
	}
	return nil
}

func installInterleaved(fd uintptr, req MapRequest) error {
	strips := make([]extentV1, len(req.FMap.Interleaved.Strips))
	for i, e := range req.FMap.Interleaved.Strips {
		strips[i] = extentV1{Offset: e.Offset, Len: e.Length}
	}

	ioc := mapIocV2{
		mapIocV1: mapIocV1{
			ExtentType:   uint32(onmedia.ExtInterleave),
			FileSize:     req.FileSize,
			ExtListCount: uint64(len(strips)),
		},
		NStrips:   req.FMap.Interleaved.NStrips,
		ChunkSize: req.FMap.Interleaved.ChunkSize,
	}
	copy(ioc.DaxDevName[:], req.DaxDev)

	if len(strips) > 0 {
		ioc.ExtListPtr = uint64(uintptr(unsafe.Pointer(&strips[0])))
	}

	cmd := iocNumber(iocDirWrite|iocDirRead, mapMagic, mapCreateV2Nr, sizeofMapIocV2)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(unsafe.Pointer(&ioc)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Get issues the map-get ioctl and returns only the file size it reports;
// the extent list is not read back.
func (RealInstaller) Get(fd uintptr) (MapRequest, error) {
	var ioc mapIocV2
	cmd := iocNumber(iocDirRead, mapMagic, mapGetNr, sizeofMapIocV2)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(unsafe.Pointer(&ioc)))
	if errno != 0 {
		return MapRequest{}, errno
	}

	return MapRequest{FileSize: ioc.FileSize}, nil
}
