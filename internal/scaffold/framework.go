package scaffold

import (
	"context"
	"io/fs"
	"strings"

	"github.com/slipwaylabs/slipway/internal/fsys"
)

// FrameworkDetection recognizes an ASGI application layout (FastAPI with an
// app package or a root main.py) and reports the module path an inferred
// uvicorn start command should load. The actual command is synthesized by
// the build planner once the listen port is resolved.
type FrameworkDetection struct {
	filesystem  fsys.FileSystem
	hasFastAPI  bool
	hasAppMain  bool
	hasRootMain bool
	source      string
}

func NewFrameworkDetection(filesystem fsys.FileSystem) *FrameworkDetection {
	return &FrameworkDetection{filesystem: filesystem}
}

func (f *FrameworkDetection) Confidence() int {
	return 50 // Inference from layout, weakest vote
}

func (f *FrameworkDetection) Reset() {
	f.hasFastAPI = false
	f.hasAppMain = false
	f.hasRootMain = false
	f.source = ""
}

func (f *FrameworkDetection) Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error {
	rel, err := f.filesystem.Rel(rootPath, path)
	if err != nil {
		return nil
	}

	switch rel {
	case "requirements.txt":
		content, err := f.filesystem.ReadFile(path)
		if err != nil {
			return nil
		}
		if containsPackage(string(content), "fastapi") {
			f.hasFastAPI = true
			f.source = path
		}
	case "app/main.py":
		f.hasAppMain = true
	case "main.py":
		f.hasRootMain = true
	}
	return nil
}

func (f *FrameworkDetection) Result(ctx context.Context) (*Finding, error) {
	if !f.hasFastAPI {
		return nil, nil
	}

	module := ""
	switch {
	case f.hasAppMain:
		module = "app.main:app"
	case f.hasRootMain:
		module = "main:app"
	default:
		return nil, nil
	}

	finding := &Finding{
		AppModule: module,
		Sources:   []ConfigRef{{Type: "framework", Path: f.source}},
	}
	return finding, nil
}

func containsPackage(manifest, pkg string) bool {
	for _, line := range strings.Split(manifest, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(line, pkg) {
			rest := line[len(pkg):]
			if rest == "" || strings.ContainsAny(rest[:1], " =<>!~[") {
				return true
			}
		}
	}
	return false
}
