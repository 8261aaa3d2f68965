package scaffold

import (
	"bufio"
	"context"
	"io/fs"
	"strings"

	"github.com/slipwaylabs/slipway/internal/fsys"
)

// ProcfileDetection reads the web process start command from a Procfile
type ProcfileDetection struct {
	filesystem fsys.FileSystem
	path       string
}

func NewProcfileDetection(filesystem fsys.FileSystem) *ProcfileDetection {
	return &ProcfileDetection{filesystem: filesystem}
}

func (p *ProcfileDetection) Confidence() int {
	return 85 // Procfiles define explicit process types
}

func (p *ProcfileDetection) Reset() {
	p.path = ""
}

func (p *ProcfileDetection) Observe(ctx context.Context, rootPath, path string, info fs.FileInfo) error {
	if p.path == "" && strings.EqualFold(info.Name(), "Procfile") {
		p.path = path
	}
	return nil
}

func (p *ProcfileDetection) Result(ctx context.Context) (*Finding, error) {
	if p.path == "" {
		return nil, nil
	}

	processes, err := p.parseProcfile(p.path)
	if err != nil {
		return nil, err
	}

	command, ok := processes["web"]
	if !ok {
		// Fall back to any declared process, "web" is just the convention
		for _, cmd := range processes {
			command = cmd
			break
		}
	}
	if command == "" {
		return nil, nil
	}

	finding := &Finding{
		Command: strings.Fields(command),
		Sources: []ConfigRef{{Type: "procfile", Path: p.path}},
	}
	return finding, nil
}

func (p *ProcfileDetection) parseProcfile(path string) (map[string]string, error) {
	content, err := p.filesystem.ReadFile(path)
	if err != nil {
		return nil, err
	}

	processes := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		processes[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return processes, scanner.Err()
}
