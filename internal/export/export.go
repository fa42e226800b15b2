// Package export renders plain-text dependency manifests from a parsed
// lockfile. The rendering is a pure function of lockfile content and
// export mode: same input always yields byte-identical output.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/lockfix/internal/lockfile"
)

// Mode selects which lockfile section an export reads.
type Mode string

const (
	// Runtime exports the default section.
	Runtime Mode = "runtime"
	// Development exports the develop section.
	Development Mode = "development"
)

// Artifact is one derived manifest: a named text file regenerated fully
// on every run, never partially patched.
type Artifact struct {
	Name    string
	Path    string
	Content []byte
}

// Error is the fatal export failure: malformed input or an unusable
// lockfile. No artifact is produced when it is returned.
type Error struct {
	Mode Mode
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export failed (%s): %v", e.Mode, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Exporter renders manifests at fixed target paths.
type Exporter struct {
	runtimePath     string
	developmentPath string
}

// New creates an Exporter writing to the given target paths.
func New(runtimePath, developmentPath string) *Exporter {
	return &Exporter{
		runtimePath:     runtimePath,
		developmentPath: developmentPath,
	}
}

// Export renders the manifest for one mode. The output is deterministic:
// entries are sorted by canonicalized name, and no timestamps or other
// run-dependent data are emitted.
func (e *Exporter) Export(lock *lockfile.Lockfile, mode Mode) (Artifact, error) {
	var (
		deps map[string]lockfile.Dependency
		path string
	)
	switch mode {
	case Runtime:
		deps = lock.Default
		path = e.runtimePath
	case Development:
		deps = lock.Develop
		path = e.developmentPath
	default:
		return Artifact{}, &Error{Mode: mode, Err: fmt.Errorf("unknown export mode %q", mode)}
	}

	return Artifact{
		Name:    string(mode),
		Path:    path,
		Content: render(deps),
	}, nil
}

// ExportAll renders both manifests, failing fatally on the first error.
func (e *Exporter) ExportAll(lock *lockfile.Lockfile) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, 2)
	for _, mode := range []Mode{Runtime, Development} {
		artifact, err := e.Export(lock, mode)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// render produces the manifest bytes: one requirement line per dependency,
// sorted by canonical name, trailing newline, nothing else.
func render(deps map[string]lockfile.Dependency) []byte {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return CanonicalName(names[i]) < CanonicalName(names[j])
	})

	var b strings.Builder
	for _, name := range names {
		b.WriteString(requirementLine(name, deps[name]))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// requirementLine formats a single requirement, e.g.
//
//	requests[socks]==2.31.0 ; python_version >= '3.7'
func requirementLine(name string, dep lockfile.Dependency) string {
	var b strings.Builder
	b.WriteString(CanonicalName(name))
	if len(dep.Extras) > 0 {
		extras := append([]string(nil), dep.Extras...)
		sort.Strings(extras)
		b.WriteByte('[')
		b.WriteString(strings.Join(extras, ","))
		b.WriteByte(']')
	}
	b.WriteString(dep.Version)
	if dep.Markers != "" {
		b.WriteString(" ; ")
		b.WriteString(dep.Markers)
	}
	return b.String()
}

// CanonicalName normalizes a package name per PEP 503: lowercase, with
// runs of '-', '_' and '.' collapsed to a single '-'.
func CanonicalName(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	prevSep := false
	for _, r := range lower {
		if r == '-' || r == '_' || r == '.' {
			if !prevSep {
				b.WriteByte('-')
			}
			prevSep = true
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}
