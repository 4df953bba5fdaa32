// Package createfile implements the file-create pipeline spec.md §4.H
// describes: resolve a destination path, allocate space, create and map a
// stub file, then commit it to the log.
package createfile

import "errors"

var (
	errNotUnderMount    = errors.New("createfile: path is not under the session's mount point")
	errParentMissing    = errors.New("createfile: parent directory does not exist")
	errParentNotDir     = errors.New("createfile: parent is not a directory")
	errExistsWrongShape = errors.New("createfile: path exists and is not a regular file, or not at the requested size")
)
