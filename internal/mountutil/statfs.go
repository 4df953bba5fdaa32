package mountutil

import "golang.org/x/sys/unix"

// Famfs statfs magic numbers, grounded on famfs_meta.h's FAMFS_SUPER_MAGIC
// (the kernel-module v1 mount) and the standard Linux FUSE magic (the
// FUSE-famfs shadow-backed mount).
const (
	famfsSuperMagicV1 = 0x87b282ff
	fuseSuperMagic    = 0x65735546
)

// MountKind identifies which of the two famfs mount implementations backs a
// path.
type MountKind int

const (
	NotFamfs MountKind = iota
	FamfsV1
	FamfsFUSE
)

// fileIsFamfs statfs's path (falling back to its parent directory, since a
// not-yet-created destination file can't be statfs'd directly) and reports
// which famfs mount kind it lives on.
func fileIsFamfs(path string) (MountKind, error) {
	var fs unix.Statfs_t

	if err := unix.Statfs(path, &fs); err != nil {
		parent := parentDir(path)
		if err := unix.Statfs(parent, &fs); err != nil {
			return NotFamfs, err
		}
	}

	switch int64(fs.Type) {
	case famfsSuperMagicV1:
		return FamfsV1, nil
	case fuseSuperMagic:
		return FamfsFUSE, nil
	default:
		return NotFamfs, nil
	}
}
