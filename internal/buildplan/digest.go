package buildplan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/slipwaylabs/slipway/internal/fsys"
	"golang.org/x/sync/errgroup"
)

// digestConcurrency bounds the number of files hashed in parallel
const digestConcurrency = 8

// TreeDigest computes a deterministic content digest of the source tree,
// excluding ignored paths. File contents are hashed concurrently; the fold
// over per-path hashes happens in sorted path order so the result is stable
// regardless of scheduling.
func TreeDigest(ctx context.Context, filesystem fsys.FileSystem, root string, ignore *IgnoreSet) (string, error) {
	var paths []string

	err := filesystem.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && ignore.Match(info.Name()) {
				return fsys.SkipDir
			}
			return nil
		}
		if ignore.Match(info.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("source tree walk failed: %w", err)
	}

	hashes := make(map[string]string, len(paths))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(digestConcurrency)

	for _, path := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			content, err := filesystem.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			sum := sha256.Sum256(content)
			mu.Lock()
			hashes[path] = hex.EncodeToString(sum[:])
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return "", err
	}

	sorted := make([]string, 0, len(hashes))
	for path := range hashes {
		sorted = append(sorted, path)
	}
	sort.Strings(sorted)

	h := sha256.New()
	for _, path := range sorted {
		rel, err := filesystem.Rel(root, path)
		if err != nil {
			rel = path
		}
		h.Write([]byte(rel))
		h.Write([]byte{0})
		h.Write([]byte(hashes[path]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
