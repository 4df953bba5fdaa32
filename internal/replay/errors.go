// Package replay materializes the append-only log onto a target directory
// tree: spec.md §4.E's replay, run either against the live mount (creating
// real files and directories) or against a shadow tree (writing YAML
// metadata stubs instead of real files).
//
// Replay never mutates the log; it only reads it and writes to the target
// root via a pkg/fs.FS, so tests can inject faults with pkg/fs.Chaos the
// same way the rest of this codebase does.
package replay

import "errors"

var (
	errBadSuperblock = errors.New("replay: superblock is invalid")
	errBadLogHeader  = errors.New("replay: log header is invalid")
)
