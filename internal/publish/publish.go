// Package publish turns a non-empty change set into a fixup branch, a
// commit, a push, and a pull request.
//
// Policy for pre-existing fixup branches: update-in-place. The fixup ref
// is force-pushed over and the existing pull request body is updated, so
// re-running publish for the same source branch is idempotent. A
// BranchConflictError is raised only when the remote rejects the forced
// ref update.
package publish

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/diff"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// TriggerContext is the per-run metadata supplied by the invoking
// environment.
type TriggerContext struct {
	// Branch is the branch whose push triggered the run.
	Branch string
	// AuthorName and AuthorEmail identify the latest commit's author and
	// are used verbatim for the fixup commit when the configured author
	// is empty.
	AuthorName  string
	AuthorEmail string
	// Token is the authentication capability for the remote.
	Token config.Secret
}

// Result describes a successful publish.
type Result struct {
	BranchName        string
	CommitHash        string
	PullRequestNumber int
	PullRequestURL    string
	// PullRequestCreated is false when an existing PR was updated.
	PullRequestCreated bool
}

// Publisher creates the fixup branch and its pull request.
type Publisher struct {
	repoPath string
	cfg      config.PublishConfig
	remote   RemoteRepository
	log      *logging.Logger
}

// New creates a Publisher operating on the checkout at repoPath.
func New(repoPath string, cfg config.PublishConfig, remote RemoteRepository, log *logging.Logger) *Publisher {
	return &Publisher{
		repoPath: repoPath,
		cfg:      cfg,
		remote:   remote,
		log:      log.Named("publish"),
	}
}

// Publish runs the publish steps in order: staging clone, branch, write,
// commit, push, pull request. No step runs unless its predecessor
// succeeded. The fixup commit is built entirely in an in-memory clone;
// the shared checkout is never written to or moved off the triggering
// branch, so the verification gate can read the same tree concurrently.
// A pushed branch is never deleted when PR creation fails; the next
// run's update path picks it up.
func (p *Publisher) Publish(ctx context.Context, changes *diff.ChangeSet, trigger TriggerContext) (*Result, error) {
	if changes == nil || changes.Empty() {
		return nil, fmt.Errorf("publish called with empty change set")
	}

	repo, err := openRepository(p.repoPath)
	if err != nil {
		return nil, err
	}

	staging, err := repo.newStagingClone(ctx, trigger.Branch)
	if err != nil {
		return nil, err
	}

	head, err := staging.headHash()
	if err != nil {
		return nil, err
	}

	branchName := trigger.Branch + p.cfg.BranchSuffix
	if err := staging.createBranch(branchName, head); err != nil {
		return nil, err
	}
	if err := staging.checkout(branchName); err != nil {
		return nil, err
	}

	if err := staging.writeAndStage(changes); err != nil {
		return nil, err
	}

	commit, err := staging.commit(p.cfg.CommitMessage, p.author(trigger))
	if err != nil {
		return nil, err
	}

	p.log.Info("committed regenerated manifests",
		zap.String("branch", branchName),
		zap.String("commit", commit.String()),
		zap.Strings("paths", changes.Paths()),
	)

	if err := p.pushWithRetry(ctx, staging, branchName, trigger.Token); err != nil {
		return nil, err
	}

	pr, created, err := p.ensurePullRequest(ctx, branchName, trigger.Branch)
	if err != nil {
		// The branch is already pushed. Leave it in place: the next run
		// finds it and goes down the update path.
		return nil, err
	}

	p.log.Info("pull request ready",
		zap.String("branch", branchName),
		zap.Int("number", pr.Number),
		zap.String("url", pr.URL),
		zap.Bool("created", created),
	)

	return &Result{
		BranchName:         branchName,
		CommitHash:         commit.String(),
		PullRequestNumber:  pr.Number,
		PullRequestURL:     pr.URL,
		PullRequestCreated: created,
	}, nil
}

// author picks the commit identity: the configured author wins, the
// trigger's commit author is the fallback.
func (p *Publisher) author(trigger TriggerContext) config.AuthorConfig {
	author := p.cfg.Author
	if author.Name == "" {
		author.Name = trigger.AuthorName
	}
	if author.Email == "" {
		author.Email = trigger.AuthorEmail
	}
	return author
}

// pushWithRetry pushes the branch, retrying transient failures through
// the same bounded-backoff layer the API calls use.
func (p *Publisher) pushWithRetry(ctx context.Context, staging *stagingRepo, branch string, token config.Secret) error {
	return retryRemoteOperation(ctx, p.cfg.Retry, p.log, "push", func() (*github.Response, error) {
		pushCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout.Duration())
		defer cancel()
		return nil, staging.push(pushCtx, branch, token)
	})
}

// ensurePullRequest opens the PR from the fixup branch into the source
// branch, or updates the body of the one that already exists. Exactly one
// PR exists per fixup branch.
func (p *Publisher) ensurePullRequest(ctx context.Context, head, base string) (*PullRequest, bool, error) {
	existing, err := p.remote.FindOpenPullRequest(ctx, head, base)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		pr, err := p.remote.UpdatePullRequestBody(ctx, existing.Number, p.cfg.Guidance)
		if err != nil {
			return nil, false, err
		}
		return pr, false, nil
	}

	pr, err := p.remote.CreatePullRequest(ctx, head, base, p.cfg.CommitMessage, p.cfg.Guidance)
	if err != nil {
		return nil, false, err
	}
	return pr, true, nil
}
