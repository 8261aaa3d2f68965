package scaffold

import (
	"context"
	"io/fs"
	"strings"

	"github.com/GoogleContainerTools/skaffold/pkg/skaffold/schema/latest"
	"github.com/slipwaylabs/slipway/internal/fsys"
	"gopkg.in/yaml.v3"
)

// SkaffoldDetection lifts the image name out of a skaffold.yaml build
// artifact when one is present.
type SkaffoldDetection struct {
	filesystem fsys.FileSystem
	paths      []string
}

func NewSkaffoldDetection(filesystem fsys.FileSystem) *SkaffoldDetection {
	return &SkaffoldDetection{filesystem: filesystem}
}

func (s *SkaffoldDetection) Confidence() int {
	return 85
}

func (s *SkaffoldDetection) Reset() {
	s.paths = nil
}

func (s *SkaffoldDetection) Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error {
	if strings.EqualFold(info.Name(), "skaffold.yaml") {
		s.paths = append(s.paths, path)
	}
	return nil
}

func (s *SkaffoldDetection) Result(ctx context.Context) (*Finding, error) {
	if len(s.paths) == 0 {
		return nil, nil
	}

	configPath := s.paths[0]
	content, err := s.filesystem.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config latest.SkaffoldConfig
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, err
	}

	if len(config.Build.Artifacts) == 0 {
		return nil, nil
	}

	finding := &Finding{
		Image:   config.Build.Artifacts[0].ImageName,
		Sources: []ConfigRef{{Type: "skaffold", Path: configPath}},
	}
	return finding, nil
}
