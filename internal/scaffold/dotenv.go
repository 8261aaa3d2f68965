package scaffold

import (
	"context"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// DotenvDetection collects runtime environment from .env files. A PORT
// variable contributes a low-confidence port value.
type DotenvDetection struct {
	filesystem fsys.FileSystem
	paths      []string
}

func NewDotenvDetection(filesystem fsys.FileSystem) *DotenvDetection {
	return &DotenvDetection{filesystem: filesystem}
}

func (d *DotenvDetection) Confidence() int {
	return 60 // Env files describe runtime config, not deployment shape
}

func (d *DotenvDetection) Reset() {
	d.paths = nil
}

func (d *DotenvDetection) Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error {
	base := strings.ToLower(info.Name())
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		// Example and template files document shape, not values
		if strings.Contains(base, "example") || strings.Contains(base, "sample") || strings.Contains(base, "template") {
			return nil
		}
		d.paths = append(d.paths, path)
	}
	return nil
}

func (d *DotenvDetection) Result(ctx context.Context) (*Finding, error) {
	if len(d.paths) == 0 {
		return nil, nil
	}

	finding := &Finding{Env: make(map[string]string)}

	for _, path := range d.paths {
		content, err := d.filesystem.ReadFile(path)
		if err != nil {
			return nil, err
		}

		env, err := godotenv.Unmarshal(string(content))
		if err != nil {
			return nil, err
		}

		for key, value := range env {
			if _, exists := finding.Env[key]; !exists {
				finding.Env[key] = value
			}
		}
		finding.Sources = append(finding.Sources, ConfigRef{Type: "dotenv", Path: path})
	}

	if port, ok := finding.Env["PORT"]; ok {
		if n, err := strconv.Atoi(port); err == nil {
			finding.Port = n
		}
	}

	return finding, nil
}
