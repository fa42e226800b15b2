// Package diff compares freshly generated manifests against the copies
// committed in the working tree.
package diff

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fyrsmithlabs/lockfix/internal/export"
)

// ChangeSet holds the artifacts whose generated content differs from the
// committed content, keyed by target path.
type ChangeSet struct {
	changes map[string][]byte
}

// Empty reports whether no artifact changed.
func (c *ChangeSet) Empty() bool {
	return len(c.changes) == 0
}

// Paths returns the changed target paths, sorted.
func (c *ChangeSet) Paths() []string {
	paths := make([]string, 0, len(c.changes))
	for p := range c.changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Content returns the new content for a changed path.
func (c *ChangeSet) Content(path string) ([]byte, bool) {
	content, ok := c.changes[path]
	return content, ok
}

// Len returns the number of changed artifacts.
func (c *ChangeSet) Len() int {
	return len(c.changes)
}

// Detect compares each artifact byte-for-byte against the file at its
// target path under treeRoot. An absent file counts as empty content.
// No normalization is performed; whitespace and encoding differences are
// real differences. Running the exporter twice on an unchanged lockfile
// therefore yields an empty set the second time.
func Detect(artifacts []export.Artifact, treeRoot string) (*ChangeSet, error) {
	cs := &ChangeSet{changes: make(map[string][]byte)}
	for _, artifact := range artifacts {
		committed, err := os.ReadFile(filepath.Join(treeRoot, artifact.Path))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read committed %s: %w", artifact.Path, err)
			}
			committed = nil
		}
		if !bytes.Equal(committed, artifact.Content) {
			cs.changes[artifact.Path] = artifact.Content
		}
	}
	return cs, nil
}
