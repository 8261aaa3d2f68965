package scaffold

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// ComposeDetection lifts the deployment profile out of a Docker Compose
// file: target port, restart policy, start command, and environment.
// Compose files are explicit deployment specs, so this detection outranks
// the rest.
type ComposeDetection struct {
	filesystem fsys.FileSystem
	paths      []string
	rootPath   string
}

var composeFileNames = []string{
	"compose.yaml", "compose.yml",
	"docker-compose.yaml", "docker-compose.yml",
}

func NewComposeDetection(filesystem fsys.FileSystem) *ComposeDetection {
	return &ComposeDetection{filesystem: filesystem}
}

func (c *ComposeDetection) Confidence() int {
	return 95
}

func (c *ComposeDetection) Reset() {
	c.paths = nil
	c.rootPath = ""
}

func (c *ComposeDetection) Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error {
	for _, name := range composeFileNames {
		if strings.EqualFold(info.Name(), name) {
			c.paths = append(c.paths, path)
			c.rootPath = rootPath
			break
		}
	}
	return nil
}

func (c *ComposeDetection) Result(ctx context.Context) (*Finding, error) {
	if len(c.paths) == 0 {
		return nil, nil
	}

	composePath := c.paths[0]
	content, err := c.filesystem.ReadFile(composePath)
	if err != nil {
		return nil, err
	}

	projectName := sanitizeProjectName(c.filesystem.Base(c.rootPath))
	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: c.rootPath,
		ConfigFiles: []types.ConfigFile{
			{Filename: composePath, Content: content},
		},
		Environment: types.Mapping{},
	}, func(options *loader.Options) {
		options.SetProjectName(projectName, true)
		options.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, err
	}

	service, ok := pickService(project)
	if !ok {
		return nil, nil
	}

	finding := &Finding{
		Image:   service.Image,
		Env:     make(map[string]string),
		Sources: []ConfigRef{{Type: "compose", Path: composePath}},
	}

	for _, port := range service.Ports {
		if port.Target != 0 {
			finding.Port = int(port.Target)
			break
		}
	}

	if len(service.Command) > 0 {
		finding.Command = append([]string{}, service.Command...)
	}
	if service.WorkingDir != "" {
		finding.WorkDir = service.WorkingDir
	}
	finding.RestartPolicy = service.Restart

	for key, value := range service.Environment {
		if value != nil {
			finding.Env[key] = *value
		}
	}

	return finding, nil
}

// pickService chooses the service the profile describes: the first one, in
// name order, that publishes a port; otherwise the first service.
func pickService(project *types.Project) (types.ServiceConfig, bool) {
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(project.Services[name].Ports) > 0 {
			return project.Services[name], true
		}
	}
	if len(names) > 0 {
		return project.Services[names[0]], true
	}
	return types.ServiceConfig{}, false
}

// sanitizeProjectName makes a directory name acceptable to the compose loader
func sanitizeProjectName(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "service"
	}
	return b.String()
}
