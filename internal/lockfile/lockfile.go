// Package lockfile parses Pipfile.lock-style dependency lockfiles.
//
// A lockfile is the authoritative record of resolved dependency versions.
// It is treated as an immutable input for one pipeline run and identified
// by the hash of its committed content.
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrMalformed indicates the lockfile could not be parsed.
	ErrMalformed = errors.New("malformed lockfile")

	// ErrUnpinned indicates a dependency without an exact pinned version.
	ErrUnpinned = errors.New("dependency version not pinned")
)

// Dependency is one resolved dependency entry.
type Dependency struct {
	// Version is the pinned version specifier, always of the form "==x.y.z".
	Version string   `json:"version"`
	Extras  []string `json:"extras,omitempty"`
	Markers string   `json:"markers,omitempty"`
	Hashes  []string `json:"hashes,omitempty"`
}

// Meta is the lockfile's _meta section.
type Meta struct {
	Hash map[string]string `json:"hash"`
}

// Lockfile is a parsed lockfile plus the hash of its raw content.
type Lockfile struct {
	Meta    Meta                  `json:"_meta"`
	Default map[string]Dependency `json:"default"`
	Develop map[string]Dependency `json:"develop"`

	contentHash string
}

// Parse parses lockfile content. Every dependency must carry an exact
// "==" pin; anything else fails with ErrUnpinned since derived manifests
// would not be reproducible.
func Parse(content []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := json.Unmarshal(content, &lf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if lf.Default == nil && lf.Develop == nil {
		return nil, fmt.Errorf("%w: no default or develop section", ErrMalformed)
	}

	for section, deps := range map[string]map[string]Dependency{
		"default": lf.Default,
		"develop": lf.Develop,
	} {
		for name, dep := range deps {
			if name == "" {
				return nil, fmt.Errorf("%w: empty dependency name in %s section", ErrMalformed, section)
			}
			if !strings.HasPrefix(dep.Version, "==") || len(dep.Version) == 2 {
				return nil, fmt.Errorf("%w: %s dependency %q has version %q", ErrUnpinned, section, name, dep.Version)
			}
		}
	}

	sum := sha256.Sum256(content)
	lf.contentHash = hex.EncodeToString(sum[:])
	return &lf, nil
}

// Load reads and parses the lockfile at path.
func Load(path string) (*Lockfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile %s: %w", path, err)
	}
	lf, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile %s: %w", path, err)
	}
	return lf, nil
}

// Hash returns the sha256 of the raw lockfile content, identifying this
// run's immutable input.
func (l *Lockfile) Hash() string {
	return l.contentHash
}
