package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// ConfigFileName is the project-level config file looked up in the source root
const ConfigFileName = "slipway.toml"

const (
	// DefaultPort is the container-internal port the service listens on
	DefaultPort = 13000

	// DefaultWorkDir is the artifact root established at bootstrap
	DefaultWorkDir = "/app"

	// DefaultManifest is the dependency manifest looked up in the source root
	DefaultManifest = "requirements.txt"

	// DefaultBaseImage is the runtime base for generated build plans
	DefaultBaseImage = "python:3.12-slim"
)

// ErrInvalidConfig is the sentinel error wrapped by validation failures.
var ErrInvalidConfig = errors.New("invalid project config")

// Config is the project-level configuration. Everything here can also be
// inferred from scaffold detection; explicit config always wins.
type Config struct {
	Image     string   `toml:"image,omitempty"`
	BaseImage string   `toml:"baseImage,omitempty"`
	Port      int      `toml:"port,omitempty"`
	WorkDir   string   `toml:"workDir,omitempty"`
	Manifest  string   `toml:"manifest,omitempty"`
	Command   []string `toml:"command,omitempty"`
	Ignore    []string `toml:"ignore,omitempty"`

	Deploy DeployConfig `toml:"deploy,omitempty"`
}

// DeployConfig holds lifecycle settings consumed by the container runtime
type DeployConfig struct {
	// RestartPolicy is one of "always", "unless-stopped", "on-failure", "no"
	RestartPolicy string `toml:"restartPolicy,omitempty"`
}

// Default returns a config populated with the documented defaults
func Default() *Config {
	return &Config{
		BaseImage: DefaultBaseImage,
		Port:      DefaultPort,
		WorkDir:   DefaultWorkDir,
		Manifest:  DefaultManifest,
		Deploy: DeployConfig{
			RestartPolicy: "unless-stopped",
		},
	}
}

// Load reads slipway.toml from the source root if present and merges it
// over the defaults. A missing config file is not an error.
func Load(filesystem fsys.FileSystem, sourcePath string) (*Config, error) {
	cfg := Default()

	configPath := filesystem.Join(sourcePath, ConfigFileName)
	data, err := filesystem.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	var fileCfg Config
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	cfg.merge(&fileCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

func (c *Config) merge(other *Config) {
	if other.Image != "" {
		c.Image = other.Image
	}
	if other.BaseImage != "" {
		c.BaseImage = other.BaseImage
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.WorkDir != "" {
		c.WorkDir = other.WorkDir
	}
	if other.Manifest != "" {
		c.Manifest = other.Manifest
	}
	if len(other.Command) > 0 {
		c.Command = other.Command
	}
	if len(other.Ignore) > 0 {
		c.Ignore = append(c.Ignore, other.Ignore...)
	}
	if other.Deploy.RestartPolicy != "" {
		c.Deploy.RestartPolicy = other.Deploy.RestartPolicy
	}
}

// Validate checks field ranges and enum values
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if !strings.HasPrefix(c.WorkDir, "/") {
		return fmt.Errorf("%w: workDir %q must be absolute", ErrInvalidConfig, c.WorkDir)
	}
	switch c.Deploy.RestartPolicy {
	case "", "always", "unless-stopped", "on-failure", "no":
	default:
		return fmt.Errorf("%w: unknown restart policy %q", ErrInvalidConfig, c.Deploy.RestartPolicy)
	}
	return nil
}
