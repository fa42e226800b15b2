// Package gitinfo reads trigger metadata from the checked-out repository
// without requiring a full git client.
package gitinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotGitRepo indicates the directory is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrHeadNotFound indicates the .git/HEAD file is missing.
	ErrHeadNotFound = errors.New("HEAD file not found")

	// ErrDetachedHead indicates HEAD does not point at a branch. CI
	// environments that check out a detached commit must supply the
	// trigger branch explicitly.
	ErrDetachedHead = errors.New("HEAD is detached")
)

// DetectBranch reads .git/HEAD to determine the current branch name. It
// is used as a fallback when the invoking environment does not pass the
// trigger branch explicitly.
func DetectBranch(projectPath string) (string, error) {
	gitDir := filepath.Join(projectPath, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, projectPath)
	}

	headFile := filepath.Join(gitDir, "HEAD")
	content, err := os.ReadFile(headFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrHeadNotFound, headFile)
		}
		return "", fmt.Errorf("reading HEAD file: %w", err)
	}

	head := strings.TrimSpace(string(content))
	if branch, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok && branch != "" {
		return branch, nil
	}

	return "", ErrDetachedHead
}
