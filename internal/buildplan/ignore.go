package buildplan

import (
	"strings"
)

// defaultIgnores are paths excluded from the source-copy layer and from the
// source digest: virtual environments, caches, VCS metadata, and slipway's
// own state directory
var defaultIgnores = []string{
	".git", ".hg", ".svn",
	".venv", "venv", "env",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".tox",
	".ruff_cache", ".coverage",
	"node_modules",
	".slipway",
	".DS_Store",
}

// IgnoreSet decides which source-tree paths stay out of the build context
type IgnoreSet struct {
	names map[string]bool
}

// NewIgnoreSet builds the default ignore set plus any extra entries
func NewIgnoreSet(extra ...string) *IgnoreSet {
	set := &IgnoreSet{names: make(map[string]bool)}
	for _, name := range defaultIgnores {
		set.names[name] = true
	}
	for _, name := range extra {
		if name != "" {
			set.names[name] = true
		}
	}
	return set
}

// Match reports whether the base name of a path component is ignored
func (s *IgnoreSet) Match(name string) bool {
	if s.names[name] {
		return true
	}
	// pyc files travel with __pycache__ but can appear alongside sources
	return strings.HasSuffix(name, ".pyc")
}

// Entries returns the ignore names in no particular order, for dockerignore rendering
func (s *IgnoreSet) Entries() []string {
	entries := make([]string, 0, len(s.names))
	for name := range s.names {
		entries = append(entries, name)
	}
	return entries
}
