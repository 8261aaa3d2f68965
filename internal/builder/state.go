package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/slipwaylabs/slipway/internal/buildplan"
	"gopkg.in/yaml.v3"
)

// State records the layer cache keys of previous builds per image tag.
// The next build compares its computed keys against these to report
// cache hits without asking the engine.
type State struct {
	Builds map[string]BuildRecord `yaml:"builds"`
}

// BuildRecord is the cache fingerprint of one completed build
type BuildRecord struct {
	LayerKeys      map[buildplan.LayerKind]string `yaml:"layerKeys"`
	ManifestDigest string                         `yaml:"manifestDigest"`
	SourceDigest   string                         `yaml:"sourceDigest"`
	BuiltAt        time.Time                      `yaml:"builtAt"`
}

func statePath(sourcePath string) string {
	return filepath.Join(sourcePath, StateDir, "state.yaml")
}

// LoadState reads the build state for a source tree. A missing state file
// yields an empty state: every layer is a cache miss on first build.
func LoadState(sourcePath string) (*State, error) {
	data, err := os.ReadFile(statePath(sourcePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &State{Builds: make(map[string]BuildRecord)}, nil
		}
		return nil, fmt.Errorf("failed to read build state: %w", err)
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse build state: %w", err)
	}
	if state.Builds == nil {
		state.Builds = make(map[string]BuildRecord)
	}
	return &state, nil
}

// Record stores the fingerprint of a completed build
func (s *State) Record(image string, plan *buildplan.Plan, manifestDigest, sourceDigest string) {
	s.Builds[image] = BuildRecord{
		LayerKeys:      plan.Keys(),
		ManifestDigest: manifestDigest,
		SourceDigest:   sourceDigest,
		BuiltAt:        time.Now().UTC(),
	}
}

// Previous returns the layer keys of the last build for an image tag
func (s *State) Previous(image string) map[buildplan.LayerKind]string {
	return s.Builds[image].LayerKeys
}

// Save persists the state under the source tree's state directory
func (s *State) Save(sourcePath string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal build state: %w", err)
	}

	dir := filepath.Join(sourcePath, StateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(statePath(sourcePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write build state: %w", err)
	}
	return nil
}
