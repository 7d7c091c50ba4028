// Package fsutil holds the filesystem primitives of the extraction stage:
// overwrite-copy of files and trees, merge-move of directories and removal.
package fsutil
