package scaffold

import (
	"context"
	"io/fs"
	"strconv"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// DockerfileDetection finds a pre-existing Dockerfile and lifts its
// EXPOSE, WORKDIR, and CMD/ENTRYPOINT instructions into the profile.
type DockerfileDetection struct {
	filesystem fsys.FileSystem
	path       string
	depth      int
}

func NewDockerfileDetection(filesystem fsys.FileSystem) *DockerfileDetection {
	return &DockerfileDetection{filesystem: filesystem}
}

func (d *DockerfileDetection) Confidence() int {
	return 90 // Explicit build instructions, but not a deployment spec
}

func (d *DockerfileDetection) Reset() {
	d.path = ""
	d.depth = 0
}

func (d *DockerfileDetection) Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error {
	name := info.Name()
	if !strings.EqualFold(name, "Dockerfile") && !strings.EqualFold(name, "Containerfile") {
		return nil
	}

	// The Dockerfile closest to the root describes this service; deeper
	// ones belong to subprojects
	pathDepth := depth(d.filesystem, rootPath, path)
	if d.path == "" || pathDepth < d.depth {
		d.path = path
		d.depth = pathDepth
	}
	return nil
}

func (d *DockerfileDetection) Result(ctx context.Context) (*Finding, error) {
	if d.path == "" {
		return nil, nil
	}

	dockerfilePath := d.path

	content, err := d.filesystem.ReadFile(dockerfilePath)
	if err != nil {
		return nil, err
	}

	ast, err := parser.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, err
	}

	finding := &Finding{
		Dockerfile: dockerfilePath,
		Sources:    []ConfigRef{{Type: "dockerfile", Path: dockerfilePath}},
	}

	for _, node := range ast.AST.Children {
		switch strings.ToUpper(node.Value) {
		case "EXPOSE":
			if port := parseExposePort(node); port != 0 {
				finding.Port = port
			}
		case "WORKDIR":
			if node.Next != nil {
				finding.WorkDir = node.Next.Value
			}
		case "CMD", "ENTRYPOINT":
			if cmd := collectArgs(node); len(cmd) > 0 {
				finding.Command = cmd
			}
		}
	}

	return finding, nil
}

func parseExposePort(node *parser.Node) int {
	if node.Next == nil {
		return 0
	}
	// "13000" or "13000/tcp"
	spec := strings.SplitN(node.Next.Value, "/", 2)[0]
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0
	}
	return port
}

func collectArgs(node *parser.Node) []string {
	var args []string
	for n := node.Next; n != nil; n = n.Next {
		args = append(args, n.Value)
	}

	// Shell form arrives as a single string; split it so the command is
	// uniform with exec form
	if len(args) == 1 && !isJSONForm(node) {
		args = strings.Fields(args[0])
	}
	return args
}

func isJSONForm(node *parser.Node) bool {
	_, ok := node.Attributes["json"]
	return ok && node.Attributes["json"]
}
