package fsys

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// OSFS implements FileSystem over the host filesystem
type OSFS struct{}

// NewOSFS creates a new OSFS instance
func NewOSFS() *OSFS {
	return &OSFS{}
}

func (o *OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (o *OSFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// Walk walks the tree rooted at root. Directory entries are visited in
// lexical order, which filepath.Walk already guarantees; tree digests
// depend on that ordering being stable.
func (o *OSFS) Walk(root string, fn WalkFunc) error {
	return filepath.Walk(root, filepath.WalkFunc(fn))
}

// ReadDirNames returns the sorted names of entries in dir
func (o *OSFS) ReadDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (o *OSFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (o *OSFS) Base(path string) string {
	return filepath.Base(path)
}

func (o *OSFS) Dir(path string) string {
	return filepath.Dir(path)
}

func (o *OSFS) Rel(basepath, targpath string) (string, error) {
	return filepath.Rel(basepath, targpath)
}
