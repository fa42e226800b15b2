package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/lockfix/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestDetect(t *testing.T) {
	artifacts := []export.Artifact{
		{Name: "runtime", Path: "requirements.txt", Content: []byte("requests==2.31.0\n")},
		{Name: "development", Path: "requirements-dev.txt", Content: []byte("pytest==8.0.0\n")},
	}

	t.Run("identical committed content yields empty set", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"requirements.txt":     "requests==2.31.0\n",
			"requirements-dev.txt": "pytest==8.0.0\n",
		})
		cs, err := Detect(artifacts, root)
		require.NoError(t, err)
		assert.True(t, cs.Empty())
		assert.Zero(t, cs.Len())
	})

	t.Run("changed content is detected", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"requirements.txt":     "requests==2.30.0\n",
			"requirements-dev.txt": "pytest==8.0.0\n",
		})
		cs, err := Detect(artifacts, root)
		require.NoError(t, err)
		assert.False(t, cs.Empty())
		assert.Equal(t, []string{"requirements.txt"}, cs.Paths())

		content, ok := cs.Content("requirements.txt")
		require.True(t, ok)
		assert.Equal(t, "requests==2.31.0\n", string(content))

		_, ok = cs.Content("requirements-dev.txt")
		assert.False(t, ok)
	})

	t.Run("absent file counts as empty content", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"requirements.txt": "requests==2.31.0\n",
		})
		cs, err := Detect(artifacts, root)
		require.NoError(t, err)
		assert.Equal(t, []string{"requirements-dev.txt"}, cs.Paths())
	})

	t.Run("no normalization, whitespace differences are real", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"requirements.txt":     "requests==2.31.0",
			"requirements-dev.txt": "pytest==8.0.0\n",
		})
		cs, err := Detect(artifacts, root)
		require.NoError(t, err)
		assert.Equal(t, []string{"requirements.txt"}, cs.Paths())
	})

	t.Run("empty artifact vs absent file is no change", func(t *testing.T) {
		empty := []export.Artifact{{Name: "development", Path: "requirements-dev.txt", Content: nil}}
		cs, err := Detect(empty, t.TempDir())
		require.NoError(t, err)
		assert.True(t, cs.Empty())
	})
}
