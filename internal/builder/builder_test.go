package builder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/slipwaylabs/slipway/internal/buildplan"
	"github.com/slipwaylabs/slipway/internal/engine"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// fakeEngine records build invocations without touching a container runtime
type fakeEngine struct {
	builds   []engine.BuildOptions
	buildErr error
}

func (f *fakeEngine) Name() string    { return "fake" }
func (f *fakeEngine) Available() bool { return true }

func (f *fakeEngine) Build(ctx context.Context, opts engine.BuildOptions) error {
	f.builds = append(f.builds, opts)
	return f.buildErr
}

func (f *fakeEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	return len(f.builds) > 0, nil
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestBuilder(eng engine.Engine) *Builder {
	return NewBuilder(fsys.NewOSFS(),
		WithEngine(eng),
		WithLogger(log.New(io.Discard)),
		WithOutput(io.Discard))
}

func TestPrepare_FastAPIProject(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi==0.110.0\nuvicorn>=0.27\n",
		"main.py":          "app = object()\n",
	})

	b := newTestBuilder(&fakeEngine{})
	prepared, err := b.Prepare(context.Background(), dir)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if prepared.WorkDir != "/app" {
		t.Errorf("expected default workDir, got %s", prepared.WorkDir)
	}
	if prepared.Port != 13000 {
		t.Errorf("expected default port, got %d", prepared.Port)
	}
	want := []string{"uvicorn", "main:app", "--host", "0.0.0.0", "--port", "13000"}
	if len(prepared.Command) != len(want) {
		t.Fatalf("unexpected command: %v", prepared.Command)
	}
	for i, arg := range want {
		if prepared.Command[i] != arg {
			t.Errorf("command[%d] = %q, want %q", i, prepared.Command[i], arg)
		}
	}
	if prepared.ManifestDigest == "" || prepared.SourceDigest == "" {
		t.Error("expected digests to be computed")
	}
	if prepared.Plan == nil {
		t.Fatal("expected a build plan")
	}
}

func TestPrepare_ConfigCommandWins(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi\n",
		"main.py":          "app = object()\n",
		"start.sh":         "#!/bin/sh\nexec uvicorn main:app\n",
		"slipway.toml":     "command = [\"python\", \"-m\", \"serve\"]\nport = 9000\n",
	})

	b := newTestBuilder(&fakeEngine{})
	prepared, err := b.Prepare(context.Background(), dir)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if prepared.Command[0] != "python" {
		t.Errorf("explicit config command must win, got %v", prepared.Command)
	}
	if prepared.Port != 9000 {
		t.Errorf("expected configured port 9000, got %d", prepared.Port)
	}
}

func TestPrepare_EntryScriptBeatsFrameworkInference(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi\n",
		"main.py":          "app = object()\n",
		"start.sh":         "#!/bin/sh\nexec uvicorn main:app\n",
	})

	b := newTestBuilder(&fakeEngine{})
	prepared, err := b.Prepare(context.Background(), dir)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if prepared.EntryScript != "start.sh" {
		t.Errorf("expected start.sh entry script, got %q", prepared.EntryScript)
	}
	if len(prepared.Command) != 1 || prepared.Command[0] != "./start.sh" {
		t.Errorf("expected entry script command, got %v", prepared.Command)
	}
}

func TestPrepare_NoCommandFails(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "flask\n",
	})

	b := newTestBuilder(&fakeEngine{})
	_, err := b.Prepare(context.Background(), dir)

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Step != "resolve" {
		t.Errorf("expected step resolve, got %q", buildErr.Step)
	}
}

func TestPrepare_MalformedManifestTagsStep(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "not a valid requirement!!\n",
	})

	b := newTestBuilder(&fakeEngine{})
	_, err := b.Prepare(context.Background(), dir)

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Step != "manifest" {
		t.Errorf("expected step manifest, got %q", buildErr.Step)
	}
}

func TestBuild_WritesArtifactAndState(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi\n",
		"main.py":          "app = object()\n",
	})

	eng := &fakeEngine{}
	b := newTestBuilder(eng)
	result, err := b.Build(context.Background(), dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(eng.builds) != 1 {
		t.Fatalf("expected 1 engine build, got %d", len(eng.builds))
	}
	if eng.builds[0].Tag != result.Artifact.Image {
		t.Errorf("engine tag %q does not match artifact image %q", eng.builds[0].Tag, result.Artifact.Image)
	}

	artifact, err := ReadArtifact(dir)
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if artifact.ID == "" {
		t.Error("expected artifact ID")
	}
	if artifact.Image != result.Artifact.Image {
		t.Errorf("persisted image %q, built %q", artifact.Image, result.Artifact.Image)
	}

	if _, err := os.Stat(filepath.Join(dir, StateDir, "Dockerfile")); err != nil {
		t.Error("expected rendered Dockerfile")
	}
	if _, err := os.Stat(filepath.Join(dir, StateDir, "Dockerfile.dockerignore")); err != nil {
		t.Error("expected rendered dockerignore")
	}

	state, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(state.Previous(result.Artifact.Image)) == 0 {
		t.Error("expected recorded layer keys")
	}
}

func TestBuild_EngineFailureLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi\n",
		"main.py":          "app = object()\n",
	})

	b := newTestBuilder(&fakeEngine{buildErr: errors.New("exit status 1")})
	_, err := b.Build(context.Background(), dir)

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Step != "build" {
		t.Errorf("expected step build, got %q", buildErr.Step)
	}

	if _, err := os.Stat(ArtifactPath(dir)); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed build must not write an artifact")
	}
}

func TestBuild_SourceEditKeepsInstallCached(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi==0.110.0\n",
		"main.py":          "app = object()\n",
	})

	b := newTestBuilder(&fakeEngine{})
	if _, err := b.Build(context.Background(), dir); err != nil {
		t.Fatalf("first build: %v", err)
	}

	// editing source must not disturb the install layer key
	writeTree(t, dir, map[string]string{"main.py": "app = object()  # edited\n"})

	prepared, err := b.Prepare(context.Background(), dir)
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}

	if !prepared.Plan.Layer(buildplan.LayerInstall).CacheHit {
		t.Error("install layer should hit cache after a source-only edit")
	}
	if prepared.Plan.Layer(buildplan.LayerSource).CacheHit {
		t.Error("source layer should miss cache after a source edit")
	}
}

func TestBuild_ManifestEditInvalidatesInstall(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi==0.110.0\n",
		"main.py":          "app = object()\n",
	})

	b := newTestBuilder(&fakeEngine{})
	if _, err := b.Build(context.Background(), dir); err != nil {
		t.Fatalf("first build: %v", err)
	}

	writeTree(t, dir, map[string]string{"requirements.txt": "fastapi==0.111.0\n"})

	prepared, err := b.Prepare(context.Background(), dir)
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}

	if prepared.Plan.Layer(buildplan.LayerInstall).CacheHit {
		t.Error("install layer must miss cache after a manifest edit")
	}
}

func TestBuild_UnchangedTreeHitsEverywhere(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi==0.110.0\n",
		"main.py":          "app = object()\n",
	})

	b := newTestBuilder(&fakeEngine{})
	if _, err := b.Build(context.Background(), dir); err != nil {
		t.Fatalf("first build: %v", err)
	}

	prepared, err := b.Prepare(context.Background(), dir)
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}

	for _, layer := range prepared.Plan.Layers {
		if !layer.CacheHit {
			t.Errorf("layer %s should hit cache on an unchanged tree", layer.Kind)
		}
	}
}

func TestBuild_DotenvFlowsToImageAndArtifact(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"requirements.txt": "fastapi\n",
		"main.py":          "app = object()\n",
		".env":             "DATABASE_URL=postgres://db/app\n",
	})

	b := newTestBuilder(&fakeEngine{})
	result, err := b.Build(context.Background(), dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if result.Prepared.Env["DATABASE_URL"] != "postgres://db/app" {
		t.Errorf("detected env must reach the prepared build, got %v", result.Prepared.Env)
	}
	if !strings.Contains(result.Prepared.Plan.Dockerfile(), `ENV DATABASE_URL="postgres://db/app"`) {
		t.Error("detected env must render into the image")
	}

	artifact, err := ReadArtifact(dir)
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if artifact.Env["DATABASE_URL"] != "postgres://db/app" {
		t.Errorf("detected env must persist in the artifact, got %v", artifact.Env)
	}
}
