package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/diff"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	gogitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// localRepo wraps the checked-out repository the pipeline runs in. It is
// only ever read: the fixup commit is built in a stagingRepo so the
// shared worktree stays on the triggering branch throughout a run. The
// verification gate may be reading the same tree concurrently.
type localRepo struct {
	path string
	repo *gogit.Repository
}

// openRepository opens the git repository at path.
func openRepository(path string) (*localRepo, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return &localRepo{path: path, repo: repo}, nil
}

// originURL resolves the URL of the origin remote, which the staging
// clone pushes to directly.
func (l *localRepo) originURL() (string, error) {
	remote, err := l.repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("failed to resolve origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("origin remote has no URL")
	}
	return urls[0], nil
}

// stagingRepo is an in-memory clone of the checkout. Branch moves, file
// writes and the fixup commit all happen against its private filesystem,
// never against the shared worktree on disk.
type stagingRepo struct {
	repo   *gogit.Repository
	origin string
}

// newStagingClone clones the checkout into memory at the given branch.
func (l *localRepo) newStagingClone(ctx context.Context, branch string) (*stagingRepo, error) {
	origin, err := l.originURL()
	if err != nil {
		return nil, err
	}
	repo, err := gogit.CloneContext(ctx, memory.NewStorage(), memfs.New(), &gogit.CloneOptions{
		URL:           l.path,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stage clone of %s: %w", l.path, err)
	}
	return &stagingRepo{repo: repo, origin: origin}, nil
}

// headHash resolves the staged branch's HEAD commit.
func (s *stagingRepo) headHash() (plumbing.Hash, error) {
	head, err := s.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash(), nil
}

// createBranch points refs/heads/<name> at the given commit, creating or
// moving the ref. Moving an existing ref implements the update-in-place
// policy for fixup branches.
func (s *stagingRepo) createBranch(name string, at plumbing.Hash) error {
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), at)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return nil
}

// checkout switches the staging worktree to the named branch.
func (s *stagingRepo) checkout(name string) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", name, err)
	}
	return nil
}

// writeAndStage writes every changed artifact to its target path in the
// staging worktree and stages it.
func (s *stagingRepo) writeAndStage(changes *diff.ChangeSet) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, path := range changes.Paths() {
		content, _ := changes.Content(path)
		if err := util.WriteFile(wt.Filesystem, path, content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("failed to stage %s: %w", path, err)
		}
	}
	return nil
}

// commit records the staged artifacts with the supplied author identity
// and message, both verbatim.
func (s *stagingRepo) commit(message string, author config.AuthorConfig) (plumbing.Hash, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get worktree: %w", err)
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}
	return hash, nil
}

// push force-updates the branch on the real origin. Errors are classified
// into the publish taxonomy so the caller can decide on retries.
func (s *stagingRepo) push(ctx context.Context, branch string, token config.Secret) error {
	refSpec := fmt.Sprintf("+refs/heads/%s:refs/heads/%s", branch, branch)
	opts := &gogit.PushOptions{
		RemoteName: "origin",
		// The clone's origin points back at the local checkout; push to
		// the checkout's own origin instead.
		RemoteURL: s.origin,
		RefSpecs:  []gogitconfig.RefSpec{gogitconfig.RefSpec(refSpec)},
	}
	if token.IsSet() {
		opts.Auth = &githttp.BasicAuth{
			// GitHub ignores the username when a token is supplied.
			Username: "x-access-token",
			Password: token.Value(),
		}
	}

	err := s.repo.PushContext(ctx, opts)
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return &AuthError{Op: "push", Err: err}
	case isRefRejected(err):
		return &BranchConflictError{Branch: branch, Err: err}
	default:
		return &NetworkError{Op: "push", Err: err}
	}
}

// isRefRejected detects a remote refusing the forced ref update, which is
// how protected branches and server-side hooks surface.
func isRefRejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "non-fast-forward") ||
		strings.Contains(msg, "pre-receive hook declined") ||
		strings.Contains(msg, "protected branch")
}
