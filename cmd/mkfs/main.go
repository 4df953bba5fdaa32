// Command mkfs formats a famfs mount point: it writes a fresh superblock
// and an empty log into {mountpoint}/.meta, the way mkfs.famfs formats a
// DAX device before it is first mounted.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/mkfs"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

var errMountPointRequired = errors.New("mkfs: must specify a mount point")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	var helpBuf bytes.Buffer

	flagSet := flag.NewFlagSet("mkfs", flag.ContinueOnError)
	flagSet.SetOutput(&helpBuf)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fmt.Fprintf(w, "Usage: mkfs [flags] <mountpoint>\n\n")
		fmt.Fprintf(w, "Create a famfs file system on a mount point's .meta directory.\n\n")
		fmt.Fprintf(w, "Flags:\n")
		flagSet.PrintDefaults()
	}

	force := flagSet.BoolP("force", "f", false, "Overwrite an existing valid superblock")
	kill := flagSet.BoolP("kill", "k", false, "Kill (invalidate) an existing superblock; requires --force")
	logLen := flagSet.Uint64P("loglen", "l", onmedia.MinLogLen, "Log region size in bytes (power of two, >= 8MiB)")
	allocUnit := flagSet.Uint64("alloc-unit", onmedia.AllocUnitLarge, "Allocation unit in bytes (4KiB or 2MiB)")
	devSize := flagSet.Uint64("devsize", 4*1024*1024*1024, "Primary daxdev size in bytes")
	devName := flagSet.String("devname", "", "Primary daxdev name, stamped into the superblock")

	if hasHelpFlag(args) {
		flagSet.Usage()
		fmt.Fprint(stdout, helpBuf.String())
		return 0
	}

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%s\n\n%s", err, helpBuf.String())
		return 1
	}

	if flagSet.NArg() < 1 {
		fmt.Fprintln(stderr, errMountPointRequired)
		flagSet.Usage()
		fmt.Fprint(stderr, helpBuf.String())
		return 1
	}
	mountPoint := flagSet.Arg(0)

	if *kill && *force {
		if err := mkfs.Kill(mountPoint); err != nil {
			fmt.Fprintln(stderr, "mkfs failed:", err)
			return 1
		}
		fmt.Fprintln(stdout, "famfs superblock killed")
		return 0
	}

	err := mkfs.Format(mountPoint, mkfs.Options{
		LogLen:            *logLen,
		AllocUnit:         *allocUnit,
		PrimaryDaxdevSize: *devSize,
		PrimaryDaxdevName: *devName,
		Force:             *force,
	})
	if err != nil {
		fmt.Fprintln(stderr, "mkfs failed:", err)
		return 1
	}

	fmt.Fprintf(stdout, "mkfs succeeded on %s\n", mountPoint)
	return 0
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "-?" {
			return true
		}
	}
	return false
}
