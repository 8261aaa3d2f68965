package fsys

import (
	"io/fs"
)

// FileSystem abstracts source-tree access for scaffold detection and tree
// digesting. Implementations exist for the OS filesystem and for an
// in-memory tree used in tests.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents
	ReadFile(name string) ([]byte, error)

	// Stat returns file information for the named path
	Stat(name string) (fs.FileInfo, error)

	// Walk walks the file tree rooted at root in deterministic order,
	// calling fn for each file or directory
	Walk(root string, fn WalkFunc) error

	// Join joins path elements into a single path
	Join(elem ...string) string

	// Base returns the last element of path
	Base(path string) string

	// Dir returns all but the last element of path
	Dir(path string) string

	// Rel returns a relative path from basepath to targpath
	Rel(basepath, targpath string) (string, error)
}

// WalkFunc is the type of function called by Walk
type WalkFunc func(path string, info fs.FileInfo, err error) error

// SkipDir is used as a return value from WalkFunc to indicate that
// the directory named in the call is to be skipped
var SkipDir = fs.SkipDir
