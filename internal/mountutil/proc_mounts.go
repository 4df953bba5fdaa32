package mountutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// mountEntry is one parsed line of /proc/mounts.
type mountEntry struct {
	device     string
	mountPoint string
	fsType     string
	options    []string
}

func parseProcMounts(r *os.File) ([]mountEntry, error) {
	var entries []mountEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		entries = append(entries, mountEntry{
			device:     fields[0],
			mountPoint: unescapeOctal(fields[1]),
			fsType:     fields[2],
			options:    strings.Split(fields[3], ","),
		})
	}

	return entries, scanner.Err()
}

// unescapeOctal decodes the \NNN octal escapes /proc/mounts uses for
// spaces, tabs, and backslashes in mount point paths.
func unescapeOctal(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseInt(s[i+1:i+4], 8, 16); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isFamfsFsType(fsType string) bool {
	return fsType == "famfs" || fsType == "fuse.famfs" || fsType == "fuse"
}

func optionValue(options []string, key string) (string, bool) {
	for _, opt := range options {
		if v, ok := strings.CutPrefix(opt, key+"="); ok {
			return v, true
		}
	}
	return "", false
}

// PathIsMountPoint parses /proc/mounts and reports whether path (after
// canonicalization) names a famfs or FUSE-famfs mount point exactly,
// returning the backing device and, for shadow-backed FUSE mounts, the
// shadow directory from the mount's shadow= option.
func PathIsMountPoint(path string) (ok bool, backingDev string, shadowPath string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, "", "", err
	}
	abs = filepath.Clean(abs)

	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false, "", "", err
	}
	defer f.Close()

	entries, err := parseProcMounts(f)
	if err != nil {
		return false, "", "", err
	}

	for _, e := range entries {
		if !isFamfsFsType(e.fsType) {
			continue
		}

		if filepath.Clean(e.mountPoint) != abs {
			continue
		}

		shadow, _ := optionValue(e.options, "shadow")
		return true, e.device, shadow, nil
	}

	return false, "", "", nil
}
