package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/slipwaylabs/slipway/internal/buildplan"
	"github.com/slipwaylabs/slipway/internal/config"
	"github.com/slipwaylabs/slipway/internal/engine"
	"github.com/slipwaylabs/slipway/internal/fsys"
	"github.com/slipwaylabs/slipway/internal/manifest"
	"github.com/slipwaylabs/slipway/internal/scaffold"
)

// entryScriptNames are launch scripts marked executable when found at the
// source root, in preference order
var entryScriptNames = []string{"start.sh", "run.sh", "entrypoint.sh"}

// BuildError tags a pipeline failure with the step that produced it. Any
// failing step aborts the build immediately; nothing downstream runs and no
// artifact or state is written.
type BuildError struct {
	Step string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build step %q failed: %v", e.Step, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Prepared is everything a build resolved before touching the engine:
// the plan with cache-hit flags, the settings the image metadata records,
// and what the scaffold scan contributed.
type Prepared struct {
	Config         *config.Config
	Profile        *scaffold.Profile
	Plan           *buildplan.Plan
	Image          string
	Port           int
	Command        []string
	WorkDir        string
	Env            map[string]string
	EntryScript    string
	ManifestDigest string
	SourceDigest   string
}

// Result is a completed build
type Result struct {
	Artifact *Artifact
	Prepared *Prepared
}

// Builder runs the image build pipeline
type Builder struct {
	filesystem fsys.FileSystem
	engine     engine.Engine
	logger     *log.Logger
	output     io.Writer
}

// Option configures a Builder
type Option func(*Builder)

// WithEngine injects the container engine
func WithEngine(e engine.Engine) Option {
	return func(b *Builder) {
		b.engine = e
	}
}

// WithLogger injects the diagnostic logger
func WithLogger(logger *log.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithOutput sets where engine build output streams
func WithOutput(w io.Writer) Option {
	return func(b *Builder) {
		b.output = w
	}
}

func NewBuilder(filesystem fsys.FileSystem, opts ...Option) *Builder {
	b := &Builder{
		filesystem: filesystem,
		engine:     engine.NewDockerEngine(),
		logger:     log.New(os.Stderr),
		output:     os.Stdout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Prepare resolves config, scaffolding, digests, and the build plan without
// invoking the engine. `slipway plan` stops here.
func (b *Builder) Prepare(ctx context.Context, sourcePath string) (*Prepared, error) {
	cfg, err := config.Load(b.filesystem, sourcePath)
	if err != nil {
		return nil, &BuildError{Step: "config", Err: err}
	}

	profile, err := scaffold.NewScanner(b.filesystem).Scan(ctx, sourcePath)
	if err != nil {
		return nil, &BuildError{Step: "scaffold", Err: err}
	}

	manifestPath := b.filesystem.Join(sourcePath, cfg.Manifest)
	m, err := manifest.Parse(b.filesystem, manifestPath)
	if err != nil {
		return nil, &BuildError{Step: "manifest", Err: err}
	}
	manifestDigest := m.Digest()

	ignore := buildplan.NewIgnoreSet(cfg.Ignore...)
	sourceDigest, err := buildplan.TreeDigest(ctx, b.filesystem, sourcePath, ignore)
	if err != nil {
		return nil, &BuildError{Step: "digest", Err: err}
	}

	prepared := &Prepared{
		Config:         cfg,
		Profile:        profile,
		ManifestDigest: manifestDigest,
		SourceDigest:   sourceDigest,
	}
	prepared.Image = resolveImage(cfg, profile, b.filesystem.Base(sourcePath))
	prepared.Port = resolvePort(cfg, profile)
	prepared.WorkDir = resolveWorkDir(cfg, profile)
	prepared.Env = profile.Env
	prepared.EntryScript = b.findEntryScript(sourcePath)
	prepared.Command = resolveCommand(cfg, profile, prepared.EntryScript, prepared.Port)
	if len(prepared.Command) == 0 {
		return nil, &BuildError{Step: "resolve", Err: fmt.Errorf("no launch command: declare one in %s, a Procfile, a compose file, or a Dockerfile CMD", config.ConfigFileName)}
	}

	plan, err := buildplan.Compute(buildplan.Inputs{
		BaseImage:      cfg.BaseImage,
		ManifestPath:   cfg.Manifest,
		ManifestDigest: manifestDigest,
		SourceDigest:   sourceDigest,
		WorkDir:        prepared.WorkDir,
		Port:           prepared.Port,
		Command:        prepared.Command,
		EntryScript:    prepared.EntryScript,
		Env:            prepared.Env,
	})
	if err != nil {
		return nil, &BuildError{Step: "plan", Err: err}
	}
	if err := plan.Validate(); err != nil {
		return nil, &BuildError{Step: "plan", Err: err}
	}
	prepared.Plan = plan

	state, err := LoadState(sourcePath)
	if err != nil {
		return nil, &BuildError{Step: "state", Err: err}
	}
	plan.MarkCached(state.Previous(prepared.Image))

	return prepared, nil
}

// Build runs the whole pipeline: prepare, render, engine build, persist.
func (b *Builder) Build(ctx context.Context, sourcePath string) (*Result, error) {
	prepared, err := b.Prepare(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	dockerfilePath, err := b.render(sourcePath, prepared)
	if err != nil {
		return nil, &BuildError{Step: "render", Err: err}
	}

	b.logger.Info("building image",
		"image", prepared.Image,
		"engine", b.engine.Name(),
		"installCached", prepared.Plan.Layer(buildplan.LayerInstall).CacheHit)

	if !b.engine.Available() {
		return nil, &BuildError{Step: "build", Err: &engine.ErrEngineNotAvailable{Engine: b.engine.Name()}}
	}

	err = b.engine.Build(ctx, engine.BuildOptions{
		ContextDir: sourcePath,
		Dockerfile: dockerfilePath,
		Tag:        prepared.Image,
		Stdout:     b.output,
		Stderr:     b.output,
	})
	if err != nil {
		return nil, &BuildError{Step: "build", Err: err}
	}

	artifact := NewArtifact(prepared.Image, prepared.Port, prepared.Command, prepared.WorkDir,
		prepared.Env, prepared.Plan, prepared.ManifestDigest, prepared.SourceDigest)
	if err := artifact.Write(sourcePath); err != nil {
		return nil, &BuildError{Step: "persist", Err: err}
	}

	state, err := LoadState(sourcePath)
	if err != nil {
		return nil, &BuildError{Step: "persist", Err: err}
	}
	state.Record(prepared.Image, prepared.Plan, prepared.ManifestDigest, prepared.SourceDigest)
	if err := state.Save(sourcePath); err != nil {
		return nil, &BuildError{Step: "persist", Err: err}
	}

	return &Result{Artifact: artifact, Prepared: prepared}, nil
}

// render writes the generated Dockerfile and its sibling dockerignore under
// the state directory and returns the Dockerfile path
func (b *Builder) render(sourcePath string, prepared *Prepared) (string, error) {
	dir := filepath.Join(sourcePath, StateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	dockerfilePath := filepath.Join(dir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(prepared.Plan.Dockerfile()), 0644); err != nil {
		return "", fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	ignore := buildplan.NewIgnoreSet(prepared.Config.Ignore...)
	entries := ignore.Entries()
	sort.Strings(entries)
	ignoreContent := strings.Join(entries, "\n") + "\n"
	if err := os.WriteFile(dockerfilePath+".dockerignore", []byte(ignoreContent), 0644); err != nil {
		return "", fmt.Errorf("failed to write dockerignore: %w", err)
	}

	return dockerfilePath, nil
}

func (b *Builder) findEntryScript(sourcePath string) string {
	for _, name := range entryScriptNames {
		if _, err := b.filesystem.Stat(b.filesystem.Join(sourcePath, name)); err == nil {
			return name
		}
	}
	return ""
}

func resolveImage(cfg *config.Config, profile *scaffold.Profile, baseName string) string {
	if cfg.Image != "" {
		return cfg.Image
	}
	if profile.Image != "" {
		return profile.Image
	}
	name := strings.ToLower(strings.ReplaceAll(baseName, " ", "-"))
	if name == "" || name == "." || name == "/" {
		name = "service"
	}
	return "slipway/" + name + ":latest"
}

func resolvePort(cfg *config.Config, profile *scaffold.Profile) int {
	// Explicit config wins; fall through to detection, then to the default
	if cfg.Port != config.DefaultPort {
		return cfg.Port
	}
	if profile.Port != 0 {
		return profile.Port
	}
	return config.DefaultPort
}

func resolveWorkDir(cfg *config.Config, profile *scaffold.Profile) string {
	if cfg.WorkDir != config.DefaultWorkDir {
		return cfg.WorkDir
	}
	if profile.WorkDir != "" && strings.HasPrefix(profile.WorkDir, "/") {
		return profile.WorkDir
	}
	return config.DefaultWorkDir
}

func resolveCommand(cfg *config.Config, profile *scaffold.Profile, entryScript string, port int) []string {
	if len(cfg.Command) > 0 {
		return cfg.Command
	}
	if len(profile.Command) > 0 {
		return profile.Command
	}
	if entryScript != "" {
		return []string{"./" + entryScript}
	}
	if profile.AppModule != "" {
		return []string{"uvicorn", profile.AppModule, "--host", "0.0.0.0", "--port", strconv.Itoa(port)}
	}
	return nil
}
