package publish

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// PullRequest is the publisher's view of a hosted pull request.
type PullRequest struct {
	Number int
	URL    string
}

// RemoteRepository is the hosted side of the repository: the branch/PR
// namespace that acts as the pipeline's only memory across runs. The
// publisher queries it before deciding create-vs-update; tests substitute
// a fake.
type RemoteRepository interface {
	// FindOpenPullRequest returns the open PR from head into base, or
	// nil when none exists.
	FindOpenPullRequest(ctx context.Context, head, base string) (*PullRequest, error)

	// CreatePullRequest opens a PR from head into base.
	CreatePullRequest(ctx context.Context, head, base, title, body string) (*PullRequest, error)

	// UpdatePullRequestBody replaces the body of an existing PR.
	UpdatePullRequestBody(ctx context.Context, number int, body string) (*PullRequest, error)
}

// gitHubRemote implements RemoteRepository against the GitHub API. All
// calls go through the retry layer; returned errors are classified into
// the publish error taxonomy.
type gitHubRemote struct {
	client *github.Client
	owner  string
	repo   string
	retry  config.RetryConfig
	log    *logging.Logger
}

// NewGitHubRemote creates a RemoteRepository backed by the GitHub API,
// authenticated with the supplied token.
func NewGitHubRemote(ctx context.Context, remote config.RemoteConfig, token config.Secret, retry config.RetryConfig, log *logging.Logger) (RemoteRepository, error) {
	if !token.IsSet() {
		return nil, &AuthError{Op: "create client", Err: fmt.Errorf("remote token not set")}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if remote.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(remote.BaseURL, remote.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid remote base URL %q: %w", remote.BaseURL, err)
		}
	}

	return &gitHubRemote{
		client: client,
		owner:  remote.Owner,
		repo:   remote.Name,
		retry:  retry,
		log:    log.Named("remote"),
	}, nil
}

func (r *gitHubRemote) FindOpenPullRequest(ctx context.Context, head, base string) (*PullRequest, error) {
	var found *PullRequest
	err := retryRemoteOperation(ctx, r.retry, r.log, "list pull requests", func() (*github.Response, error) {
		prs, resp, err := r.client.PullRequests.List(ctx, r.owner, r.repo, &github.PullRequestListOptions{
			State: "open",
			Head:  r.owner + ":" + head,
			Base:  base,
		})
		if err != nil {
			return resp, classifyGitHubError("list pull requests", resp, err)
		}
		if len(prs) > 0 {
			found = toPullRequest(prs[0])
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *gitHubRemote) CreatePullRequest(ctx context.Context, head, base, title, body string) (*PullRequest, error) {
	var created *PullRequest
	err := retryRemoteOperation(ctx, r.retry, r.log, "create pull request", func() (*github.Response, error) {
		pr, resp, err := r.client.PullRequests.Create(ctx, r.owner, r.repo, &github.NewPullRequest{
			Title: github.String(title),
			Head:  github.String(head),
			Base:  github.String(base),
			Body:  github.String(body),
		})
		if err != nil {
			return resp, classifyGitHubError("create pull request", resp, err)
		}
		created = toPullRequest(pr)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *gitHubRemote) UpdatePullRequestBody(ctx context.Context, number int, body string) (*PullRequest, error) {
	var updated *PullRequest
	err := retryRemoteOperation(ctx, r.retry, r.log, "update pull request", func() (*github.Response, error) {
		pr, resp, err := r.client.PullRequests.Edit(ctx, r.owner, r.repo, number, &github.PullRequest{
			Body: github.String(body),
		})
		if err != nil {
			return resp, classifyGitHubError("update pull request", resp, err)
		}
		updated = toPullRequest(pr)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func toPullRequest(pr *github.PullRequest) *PullRequest {
	return &PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
	}
}
