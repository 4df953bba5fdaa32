package mkfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/fslog"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/sysid"
)

// metaDir, superblockFileName and logFileName mirror internal/session's
// unexported constants of the same names: the two packages agree on a
// fixed on-disk contract (mkfs writes what session.Open reads) without
// either importing the other.
const (
	metaDir            = ".meta"
	superblockFileName = ".superblock"
	logFileName        = ".log"
)

// Options configures Format, mirroring __famfs_mkfs's argument list minus
// the raw daxdev open/mmap (the caller already has a resolved mount point;
// see internal/mountutil).
type Options struct {
	// LogLen is the log region's size in bytes. Must be a power of two and
	// at least onmedia.MinLogLen.
	LogLen uint64

	// AllocUnit must be onmedia.AllocUnitSmall or onmedia.AllocUnitLarge.
	AllocUnit uint64

	// PrimaryDaxdevSize and PrimaryDaxdevName describe the device backing
	// this filesystem, stamped into the superblock for informational use.
	PrimaryDaxdevSize uint64
	PrimaryDaxdevName string

	// Force allows mkfs to overwrite an existing valid superblock.
	Force bool

	// SystemUUIDPath overrides sysid.DefaultPath, primarily for tests.
	SystemUUIDPath string
}

// Format implements __famfs_mkfs: validate the requested log length and
// alloc unit, refuse to clobber an existing valid superblock unless Force is
// set, then write a fresh superblock and an empty log into mountPoint's
// .meta directory.
func Format(mountPoint string, opts Options) error {
	if opts.LogLen&(opts.LogLen-1) != 0 {
		return errLogLenNotPowerOfTwo
	}
	if opts.LogLen < onmedia.MinLogLen {
		return errLogLenTooSmall
	}
	if opts.AllocUnit != onmedia.AllocUnitSmall && opts.AllocUnit != onmedia.AllocUnitLarge {
		return errBadAllocUnit
	}
	if opts.PrimaryDaxdevSize < onmedia.LogOffset+opts.LogLen {
		return errDeviceTooSmall
	}

	dir := filepath.Join(mountPoint, metaDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkfs: creating %s: %w", dir, err)
	}

	sbPath := filepath.Join(dir, superblockFileName)
	if err := refuseExistingUnlessForce(sbPath, opts.Force); err != nil {
		return err
	}

	uuidPath := opts.SystemUUIDPath
	if uuidPath == "" {
		uuidPath = sysid.DefaultPath
	}
	systemUUID, err := sysid.Resolve(uuidPath)
	if err != nil {
		return fmt.Errorf("mkfs: resolving system uuid: %w", err)
	}

	var daxName [onmedia.DaxdevNameLen]byte
	copy(daxName[:], opts.PrimaryDaxdevName)

	sb := onmedia.Superblock{
		Magic:             onmedia.SuperblockMagic,
		Version:           onmedia.CurrentVersion,
		LogOffset:         onmedia.LogOffset,
		LogLen:            opts.LogLen,
		AllocUnit:         opts.AllocUnit,
		FSUUID:            uuidBytes(),
		DevUUID:           uuidBytes(),
		SystemUUID:        systemUUID,
		OMFMajor:          onmedia.CurrentOMFMajor,
		OMFMinor:          onmedia.CurrentOMFMinor,
		PrimaryDaxdevSize: opts.PrimaryDaxdevSize,
		PrimaryDaxdevName: daxName,
	}

	if err := writeSuperblock(sbPath, &sb); err != nil {
		return fmt.Errorf("mkfs: writing superblock: %w", err)
	}

	logPath := filepath.Join(dir, logFileName)
	if err := writeEmptyLog(logPath, opts.LogLen); err != nil {
		_ = os.Remove(sbPath)
		return fmt.Errorf("mkfs: writing log: %w", err)
	}

	return nil
}

// Kill implements __famfs_mkfs's kill-and-force path: zero the superblock's
// magic so it is no longer recognized as valid, without touching the log.
// This is destructive and irreversible for anyone still holding the old
// superblock's metadata.
func Kill(mountPoint string) error {
	sbPath := filepath.Join(mountPoint, metaDir, superblockFileName)

	data, err := os.ReadFile(sbPath) //nolint:gosec // path derives from a resolved mount point
	if err != nil {
		return fmt.Errorf("mkfs: reading superblock: %w", err)
	}

	sb, err := onmedia.DecodeSuperblock(data)
	if err != nil {
		return fmt.Errorf("mkfs: decoding superblock: %w", err)
	}

	sb.Magic = 0
	return writeSuperblock(sbPath, &sb)
}

func refuseExistingUnlessForce(sbPath string, force bool) error {
	data, err := os.ReadFile(sbPath) //nolint:gosec // path derives from a resolved mount point
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("mkfs: reading existing superblock: %w", err)
	}

	sb, err := onmedia.DecodeSuperblock(data)
	if err != nil {
		// Unparseable data isn't a valid superblock either; safe to
		// overwrite regardless of Force.
		return nil
	}

	if onmedia.CheckSuper(&sb) == onmedia.CheckOK && !force {
		return errAlreadyFormatted
	}
	return nil
}

func writeSuperblock(path string, sb *onmedia.Superblock) error {
	buf := make([]byte, onmedia.SuperblockSize)
	copy(buf, sb.Encode())

	return os.WriteFile(path, buf, 0644) //nolint:gosec // superblock is world-readable metadata, matching famfs_meta.h's on-device convention
}

func writeEmptyLog(path string, logLen uint64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(int64(logLen)); err != nil {
		return err
	}

	region, err := fslog.MapFile(f, int(logLen))
	if err != nil {
		return err
	}
	defer fslog.Unmap(region)

	nslots := (logLen - onmedia.LogHeaderEncodedSize) / onmedia.LogEntryEncodedSize
	if _, err := fslog.Init(region, nslots-1); err != nil {
		return err
	}

	return fslog.Flush(region)
}

func uuidBytes() [16]byte {
	id := uuid.New()
	var out [16]byte
	copy(out[:], id[:])
	return out
}
