package manifest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/slipwaylabs/slipway/internal/fsys"
)

// ErrMalformedManifest is the sentinel error wrapped by parse failures.
var ErrMalformedManifest = errors.New("malformed dependency manifest")

// Requirement is a single declared dependency with an optional version
// constraint, e.g. "fastapi==0.110.0" or "uvicorn[standard]>=0.27".
type Requirement struct {
	Name       string
	Constraint string
	Raw        string
}

// Manifest is the immutable dependency declaration read at build time.
// The install layer's cache key is derived from Digest, so two manifests
// that differ only in comments or blank lines must digest identically.
type Manifest struct {
	Path         string
	Requirements []Requirement
	// Options are resolver directives like "--index-url ..." passed
	// through to the install tool untouched.
	Options []string
}

var constraintOperators = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

// Parse reads and parses a requirements-style manifest from the filesystem.
// An empty manifest is valid: the install layer still runs, keyed by the
// empty digest.
func Parse(filesystem fsys.FileSystem, path string) (*Manifest, error) {
	content, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m := &Manifest{Path: path}

	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			m.Options = append(m.Options, line)
			continue
		}

		req, err := parseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan manifest %s: %w", path, err)
	}

	return m, nil
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func parseRequirement(line string) (Requirement, error) {
	name := line
	constraint := ""

	for _, op := range constraintOperators {
		if idx := strings.Index(line, op); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			constraint = strings.TrimSpace(line[idx:])
			break
		}
	}

	// Strip extras markers like uvicorn[standard] for name validation
	bare := name
	if idx := strings.Index(bare, "["); idx >= 0 {
		if !strings.HasSuffix(bare, "]") {
			return Requirement{}, fmt.Errorf("%w: unterminated extras in %q", ErrMalformedManifest, line)
		}
		bare = bare[:idx]
	}

	if bare == "" || !isValidName(bare) {
		return Requirement{}, fmt.Errorf("%w: invalid requirement %q", ErrMalformedManifest, line)
	}

	return Requirement{Name: name, Constraint: constraint, Raw: line}, nil
}

func isValidName(name string) bool {
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		case (r == '-' || r == '_' || r == '.') && i > 0:
		default:
			return false
		}
	}
	return true
}

// Digest returns the canonical content digest of the manifest. Comments,
// blank lines, and surrounding whitespace do not participate; requirement
// order does, since install tools resolve in declaration order.
func (m *Manifest) Digest() string {
	h := sha256.New()
	for _, opt := range m.Options {
		h.Write([]byte(opt))
		h.Write([]byte{'\n'})
	}
	for _, req := range m.Requirements {
		h.Write([]byte(req.Name))
		h.Write([]byte{' '})
		h.Write([]byte(req.Constraint))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsEmpty reports whether the manifest declares no dependencies
func (m *Manifest) IsEmpty() bool {
	return len(m.Requirements) == 0 && len(m.Options) == 0
}
