package mountutil

import (
	"os"
	"syscall"
)

// deviceOf returns the st_dev of fi, or 0 if the underlying sys value isn't
// a *syscall.Stat_t (never the case on the Linux hosts famfs targets).
func deviceOf(fi os.FileInfo) uint64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(st.Dev)
}
