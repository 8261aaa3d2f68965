package fsys

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MemoryFS implements FileSystem for in-memory trees. Tests build source
// layouts with AddFile/AddDir and run detection and digesting against them
// without touching the real filesystem.
type MemoryFS struct {
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFS creates a new MemoryFS instance
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// AddFile adds a file to the memory filesystem, creating parent directories
func (mfs *MemoryFS) AddFile(name string, content []byte) {
	mfs.files[path.Clean(name)] = content
	dir := path.Dir(name)
	for dir != "." && dir != "/" {
		mfs.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

// AddDir adds a directory to the memory filesystem
func (mfs *MemoryFS) AddDir(name string) {
	mfs.dirs[path.Clean(name)] = true
	dir := path.Dir(name)
	for dir != "." && dir != "/" {
		mfs.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

func (mfs *MemoryFS) ReadFile(name string) ([]byte, error) {
	content, exists := mfs.files[path.Clean(name)]
	if !exists {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return content, nil
}

func (mfs *MemoryFS) Stat(name string) (fs.FileInfo, error) {
	clean := path.Clean(name)
	if mfs.dirs[clean] || clean == "." {
		return &memoryFileInfo{name: path.Base(clean), mode: fs.ModeDir | 0755, isDir: true}, nil
	}
	if content, exists := mfs.files[clean]; exists {
		return &memoryFileInfo{name: path.Base(clean), size: int64(len(content)), mode: 0644}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// Walk visits entries in sorted order so digest computation over a MemoryFS
// is deterministic, matching the lexical ordering of filepath.Walk.
func (mfs *MemoryFS) Walk(root string, fn WalkFunc) error {
	cleanRoot := path.Clean(root)

	var walkDir func(dir string) error
	walkDir = func(dir string) error {
		info, err := mfs.Stat(dir)
		if err != nil {
			return fn(dir, nil, err)
		}

		if err := fn(dir, info, nil); err != nil {
			if err == SkipDir && info.IsDir() {
				return nil
			}
			return err
		}

		if !info.IsDir() {
			return nil
		}

		for _, child := range mfs.childNames(dir) {
			childPath := child
			if dir != "." {
				childPath = path.Join(dir, child)
			}
			if err := walkDir(childPath); err != nil {
				return err
			}
		}
		return nil
	}

	return walkDir(cleanRoot)
}

// childNames returns the sorted direct children of dir
func (mfs *MemoryFS) childNames(dir string) []string {
	prefix := ""
	if dir != "." {
		prefix = dir + "/"
	}

	seen := make(map[string]bool)
	var names []string

	collect := func(p string) {
		if dir != "." && !strings.HasPrefix(p, prefix) {
			return
		}
		remainder := strings.TrimPrefix(p, prefix)
		if remainder == "" || (dir == "." && strings.HasPrefix(p, "/")) {
			return
		}
		child := strings.Split(remainder, "/")[0]
		if !seen[child] {
			seen[child] = true
			names = append(names, child)
		}
	}

	for filePath := range mfs.files {
		collect(filePath)
	}
	for dirPath := range mfs.dirs {
		if dirPath != dir {
			collect(dirPath)
		}
	}

	sort.Strings(names)
	return names
}

func (mfs *MemoryFS) Join(elem ...string) string {
	return path.Join(elem...)
}

func (mfs *MemoryFS) Base(p string) string {
	return path.Base(p)
}

func (mfs *MemoryFS) Dir(p string) string {
	return path.Dir(p)
}

func (mfs *MemoryFS) Rel(basepath, targpath string) (string, error) {
	base := path.Clean(basepath)
	target := path.Clean(targpath)

	if base == target {
		return ".", nil
	}
	if base == "." {
		return target, nil
	}
	if strings.HasPrefix(target, base+"/") {
		return strings.TrimPrefix(target, base+"/"), nil
	}
	return "", fmt.Errorf("cannot make %s relative to %s", targpath, basepath)
}

// memoryFileInfo implements fs.FileInfo for memory filesystem entries
type memoryFileInfo struct {
	name  string
	size  int64
	mode  fs.FileMode
	isDir bool
}

func (i *memoryFileInfo) Name() string       { return i.name }
func (i *memoryFileInfo) Size() int64        { return i.size }
func (i *memoryFileInfo) Mode() fs.FileMode  { return i.mode }
func (i *memoryFileInfo) ModTime() time.Time { return time.Time{} }
func (i *memoryFileInfo) IsDir() bool        { return i.isDir }
func (i *memoryFileInfo) Sys() interface{}   { return nil }
