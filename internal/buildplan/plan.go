package buildplan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// LayerKind identifies a build layer's role in the pipeline
type LayerKind string

const (
	LayerBase     LayerKind = "base"
	LayerManifest LayerKind = "manifest"
	LayerInstall  LayerKind = "install"
	LayerSource   LayerKind = "source"
	LayerEntry    LayerKind = "entry"
	LayerMetadata LayerKind = "metadata"
)

// ErrInvalidPlan is the sentinel error wrapped by plan validation failures.
var ErrInvalidPlan = errors.New("invalid build plan")

// Layer is one immutable filesystem delta in the ordered build sequence.
// CacheKey is derived from the layer's inputs chained through its
// predecessor's key, so any upstream change invalidates everything below it
// while downstream-only changes leave upstream keys untouched.
type Layer struct {
	Kind         LayerKind `yaml:"kind"`
	Instructions []string  `yaml:"instructions"`
	CacheKey     string    `yaml:"cacheKey"`
	CacheHit     bool      `yaml:"cacheHit"`
}

// Inputs are the resolved facts a plan is computed from
type Inputs struct {
	BaseImage      string
	ManifestPath   string // relative to the build context
	ManifestDigest string
	SourceDigest   string
	WorkDir        string
	Port           int
	Command        []string
	EntryScript    string // relative path, marked executable when set
	// Env is baked into the image as ENV instructions, in sorted key order
	Env map[string]string
}

// Plan is the ordered, append-only layer sequence for one image build
type Plan struct {
	Layers []Layer `yaml:"layers"`
	inputs Inputs
}

// Compute derives the layer sequence from the inputs. Ordering is the
// contract: the manifest is copied and dependencies installed before the
// source tree is copied, so a source-only edit can never invalidate the
// install layer.
func Compute(in Inputs) (*Plan, error) {
	if in.BaseImage == "" {
		return nil, fmt.Errorf("%w: base image required", ErrInvalidPlan)
	}
	if in.ManifestPath == "" {
		return nil, fmt.Errorf("%w: manifest path required", ErrInvalidPlan)
	}
	if in.WorkDir == "" {
		return nil, fmt.Errorf("%w: working directory required", ErrInvalidPlan)
	}
	if in.Port < 1 || in.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidPlan, in.Port)
	}
	if len(in.Command) == 0 {
		return nil, fmt.Errorf("%w: launch command required", ErrInvalidPlan)
	}

	plan := &Plan{inputs: in}

	plan.append(LayerBase, []string{
		fmt.Sprintf("FROM %s", in.BaseImage),
		fmt.Sprintf("WORKDIR %s", in.WorkDir),
	}, in.BaseImage, in.WorkDir)

	plan.append(LayerManifest, []string{
		fmt.Sprintf("COPY %s ./%s", in.ManifestPath, in.ManifestPath),
	}, in.ManifestPath, in.ManifestDigest)

	plan.append(LayerInstall, []string{
		fmt.Sprintf("RUN pip install --no-cache-dir -r %s", in.ManifestPath),
	}, in.ManifestPath)

	plan.append(LayerSource, []string{
		"COPY . .",
	}, in.SourceDigest)

	if in.EntryScript != "" {
		plan.append(LayerEntry, []string{
			fmt.Sprintf("RUN chmod +x ./%s", in.EntryScript),
		}, in.EntryScript)
	}

	envKeys := make([]string, 0, len(in.Env))
	for key := range in.Env {
		envKeys = append(envKeys, key)
	}
	sort.Strings(envKeys)

	metadata := make([]string, 0, len(envKeys)+2)
	keyInputs := []string{fmt.Sprintf("%d", in.Port), strings.Join(in.Command, "\x00")}
	for _, key := range envKeys {
		metadata = append(metadata, fmt.Sprintf("ENV %s=%q", key, in.Env[key]))
		keyInputs = append(keyInputs, key+"="+in.Env[key])
	}
	metadata = append(metadata,
		fmt.Sprintf("EXPOSE %d", in.Port),
		fmt.Sprintf("CMD %s", jsonForm(in.Command)),
	)
	plan.append(LayerMetadata, metadata, keyInputs...)

	return plan, nil
}

// append adds a layer whose cache key chains the previous layer's key with
// this layer's own inputs
func (p *Plan) append(kind LayerKind, instructions []string, keyInputs ...string) {
	h := sha256.New()
	if n := len(p.Layers); n > 0 {
		h.Write([]byte(p.Layers[n-1].CacheKey))
	}
	h.Write([]byte(kind))
	for _, input := range keyInputs {
		h.Write([]byte{0})
		h.Write([]byte(input))
	}

	p.Layers = append(p.Layers, Layer{
		Kind:         kind,
		Instructions: instructions,
		CacheKey:     hex.EncodeToString(h.Sum(nil)),
	})
}

// Layer returns the layer of the given kind, or nil
func (p *Plan) Layer(kind LayerKind) *Layer {
	for i := range p.Layers {
		if p.Layers[i].Kind == kind {
			return &p.Layers[i]
		}
	}
	return nil
}

// Keys returns the cache key of every layer by kind
func (p *Plan) Keys() map[LayerKind]string {
	keys := make(map[LayerKind]string, len(p.Layers))
	for _, layer := range p.Layers {
		keys[layer.Kind] = layer.CacheKey
	}
	return keys
}

// MarkCached flags layers whose cache keys match a previous build's keys.
// A hit on the install layer means the manifest is unchanged and no
// dependency reinstall will happen.
func (p *Plan) MarkCached(previous map[LayerKind]string) {
	for i := range p.Layers {
		p.Layers[i].CacheHit = previous[p.Layers[i].Kind] == p.Layers[i].CacheKey
	}
}

// Dockerfile renders the plan as Dockerfile text
func (p *Plan) Dockerfile() string {
	var b strings.Builder
	b.WriteString("# Generated by slipway; do not edit.\n")
	for _, layer := range p.Layers {
		for _, instruction := range layer.Instructions {
			b.WriteString(instruction)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Validate round-trips the rendered Dockerfile through the BuildKit
// dockerfile parser and checks the instruction sequence survived intact
func (p *Plan) Validate() error {
	rendered := p.Dockerfile()

	ast, err := parser.Parse(strings.NewReader(rendered))
	if err != nil {
		return fmt.Errorf("%w: rendered Dockerfile does not parse: %v", ErrInvalidPlan, err)
	}

	want := 0
	for _, layer := range p.Layers {
		want += len(layer.Instructions)
	}
	if got := len(ast.AST.Children); got != want {
		return fmt.Errorf("%w: rendered %d instructions, parser saw %d", ErrInvalidPlan, want, got)
	}

	if !strings.EqualFold(ast.AST.Children[0].Value, "FROM") {
		return fmt.Errorf("%w: first instruction must be FROM", ErrInvalidPlan)
	}
	return nil
}

// jsonForm renders a command in Dockerfile exec form so the service runs
// as PID 1 without a shell wrapper intercepting signals
func jsonForm(command []string) string {
	parts := make([]string, len(command))
	for i, arg := range command {
		parts[i] = fmt.Sprintf("%q", arg)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
