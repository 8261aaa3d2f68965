package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/slipwaylabs/slipway/internal/buildplan"
	"gopkg.in/yaml.v3"
)

// StateDir is the per-project directory holding build state and artifact metadata
const StateDir = ".slipway"

// Artifact is the immutable record of one successful build: the image tag
// plus the metadata the bootstrap stage and the next build's cache check
// need. It is written only after the engine build succeeds; a failed build
// leaves no artifact behind.
type Artifact struct {
	ID             string                         `yaml:"id"`
	Image          string                         `yaml:"image"`
	Port           int                            `yaml:"port"`
	Command        []string                       `yaml:"command"`
	WorkDir        string                         `yaml:"workDir"`
	Env            map[string]string              `yaml:"env,omitempty"`
	ManifestDigest string                         `yaml:"manifestDigest"`
	SourceDigest   string                         `yaml:"sourceDigest"`
	LayerKeys      map[buildplan.LayerKind]string `yaml:"layerKeys"`
	CreatedAt      time.Time                      `yaml:"createdAt"`
}

// NewArtifact assembles the artifact record for a completed build
func NewArtifact(image string, port int, command []string, workDir string, env map[string]string, plan *buildplan.Plan, manifestDigest, sourceDigest string) *Artifact {
	return &Artifact{
		ID:             uuid.NewString(),
		Image:          image,
		Port:           port,
		Command:        command,
		WorkDir:        workDir,
		Env:            env,
		ManifestDigest: manifestDigest,
		SourceDigest:   sourceDigest,
		LayerKeys:      plan.Keys(),
		CreatedAt:      time.Now().UTC(),
	}
}

// ArtifactPath returns where artifact metadata lives for a source tree
func ArtifactPath(sourcePath string) string {
	return filepath.Join(sourcePath, StateDir, "artifact.yaml")
}

// Write persists the artifact metadata under the source tree's state directory
func (a *Artifact) Write(sourcePath string) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}

	dir := filepath.Join(sourcePath, StateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(ArtifactPath(sourcePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact metadata: %w", err)
	}
	return nil
}

// ReadArtifact loads previously written artifact metadata
func ReadArtifact(sourcePath string) (*Artifact, error) {
	data, err := os.ReadFile(ArtifactPath(sourcePath))
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact metadata: %w", err)
	}
	return &artifact, nil
}
