package scaffold

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/slipwaylabs/slipway/internal/fsys"
)

// ConfigRef records which scaffolding file contributed to the profile
type ConfigRef struct {
	Type string // "dockerfile", "compose", "skaffold", "procfile", "dotenv", "framework"
	Path string
}

// Finding is the partial deployment profile produced by a single detection.
// Zero values mean "this detection has nothing to say about that field".
type Finding struct {
	Port          int
	Command       []string
	WorkDir       string
	Image         string
	RestartPolicy string
	Env           map[string]string
	Dockerfile    string // path of a pre-existing Dockerfile, if any
	AppModule     string // ASGI module path, e.g. "app.main:app"
	Sources       []ConfigRef
}

// Detection inspects source-tree entries for one kind of deployment scaffolding
type Detection interface {
	// Observe is called for each entry encountered during the tree walk
	Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error

	// Result is called after the walk to produce this detection's finding.
	// A nil finding means nothing was detected.
	Result(ctx context.Context) (*Finding, error)

	// Reset clears accumulated state before a new scan
	Reset()

	// Confidence level for per-field conflict resolution
	Confidence() int // 0-100
}

// Profile is the triangulated deployment profile for a source tree. Each
// field carries the value from the highest-confidence detection that set it.
type Profile struct {
	Port          int
	Command       []string
	WorkDir       string
	Image         string
	RestartPolicy string
	Env           map[string]string
	Dockerfile    string
	AppModule     string
	Sources       []ConfigRef
}

// Scanner walks a source tree and runs registered detections over it
type Scanner struct {
	detections []Detection
	filesystem fsys.FileSystem
}

func NewScanner(filesystem fsys.FileSystem, detections ...Detection) *Scanner {
	if len(detections) == 0 {
		detections = DefaultDetections(filesystem)
	}
	return &Scanner{
		detections: detections,
		filesystem: filesystem,
	}
}

func DefaultDetections(filesystem fsys.FileSystem) []Detection {
	return []Detection{
		NewComposeDetection(filesystem),
		NewDockerfileDetection(filesystem),
		NewSkaffoldDetection(filesystem),
		NewProcfileDetection(filesystem),
		NewDotenvDetection(filesystem),
		NewFrameworkDetection(filesystem),
	}
}

// maxScanDepth bounds the walk; deployment scaffolding sits at or near the root
const maxScanDepth = 3

var skipDirs = []string{
	"node_modules", "vendor", "venv", ".venv", "env",
	"__pycache__", ".git", ".hg", ".svn",
	"dist", "build", "target", ".tox", ".pytest_cache",
	".mypy_cache", ".slipway",
}

func shouldSkipDir(name string) bool {
	for _, skip := range skipDirs {
		if strings.EqualFold(name, skip) {
			return true
		}
	}
	return strings.HasPrefix(name, ".") && name != "."
}

// Scan walks the source tree and triangulates detections into a Profile
func (s *Scanner) Scan(ctx context.Context, rootPath string) (*Profile, error) {
	for _, detection := range s.detections {
		detection.Reset()
	}

	err := s.filesystem.Walk(rootPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != rootPath && shouldSkipDir(info.Name()) {
				return fsys.SkipDir
			}
			if depth(s.filesystem, rootPath, path) > maxScanDepth {
				return fsys.SkipDir
			}
			return nil
		}

		for _, detection := range s.detections {
			if err := detection.Observe(ctx, rootPath, path, info); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source tree walk failed: %w", err)
	}

	type scored struct {
		finding    *Finding
		confidence int
	}

	var results []scored
	for _, detection := range s.detections {
		finding, err := detection.Result(ctx)
		if err != nil {
			continue // broken scaffolding files lose their vote, nothing more
		}
		if finding != nil {
			results = append(results, scored{finding, detection.Confidence()})
		}
	}

	profile := &Profile{Env: make(map[string]string)}
	conf := struct {
		port, command, workDir, image, restart int
	}{}

	for _, r := range results {
		f := r.finding
		if f.Port != 0 && r.confidence > conf.port {
			profile.Port = f.Port
			conf.port = r.confidence
		}
		if len(f.Command) > 0 && r.confidence > conf.command {
			profile.Command = f.Command
			conf.command = r.confidence
		}
		if f.WorkDir != "" && r.confidence > conf.workDir {
			profile.WorkDir = f.WorkDir
			conf.workDir = r.confidence
		}
		if f.Image != "" && r.confidence > conf.image {
			profile.Image = f.Image
			conf.image = r.confidence
		}
		if f.RestartPolicy != "" && r.confidence > conf.restart {
			profile.RestartPolicy = f.RestartPolicy
			conf.restart = r.confidence
		}
		if f.Dockerfile != "" && profile.Dockerfile == "" {
			profile.Dockerfile = f.Dockerfile
		}
		if f.AppModule != "" && profile.AppModule == "" {
			profile.AppModule = f.AppModule
		}
		for key, value := range f.Env {
			if _, exists := profile.Env[key]; !exists {
				profile.Env[key] = value
			}
		}
		profile.Sources = append(profile.Sources, f.Sources...)
	}

	return profile, nil
}

func depth(filesystem fsys.FileSystem, rootPath, path string) int {
	rel, err := filesystem.Rel(rootPath, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
