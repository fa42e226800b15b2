package main

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/diff"
	"github.com/fyrsmithlabs/lockfix/internal/export"
	"github.com/fyrsmithlabs/lockfix/internal/gitinfo"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/fyrsmithlabs/lockfix/internal/pipeline"
	"github.com/fyrsmithlabs/lockfix/internal/publish"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	triggerBranch string
	authorName    string
	authorEmail   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Regenerate manifests and propose changes as a pull request",
	Long: `Regenerate the dependency manifests from the lockfile and compare them
against the committed copies. When they differ, commit the regenerated
manifests on a fixup branch, push it, and open (or update) a pull request.

An unchanged lockfile and a trigger branch that is itself a fixup branch
are both successes: the command exits 0 without publishing anything.

Examples:
  # CI supplies the trigger branch and commit author
  lockfix export --branch main --author-name "Jo Dev" --author-email jo@example.com

  # Fall back to the branch the checkout is on
  lockfix export`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&triggerBranch, "branch", "", "branch that triggered the run (default: detected from the checkout)")
	exportCmd.Flags().StringVar(&authorName, "author-name", "", "author name of the triggering commit")
	exportCmd.Flags().StringVar(&authorEmail, "author-email", "", "author email of the triggering commit")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	outcome, err := executeExportPipeline(cmd, cfg, log)
	if err != nil {
		return describePipelineError(err)
	}

	switch outcome.Status {
	case pipeline.StatusSkipped:
		fmt.Fprintln(cmd.OutOrStdout(), "skipped: trigger branch is a fixup branch")
	case pipeline.StatusClean:
		fmt.Fprintln(cmd.OutOrStdout(), "manifests up to date, nothing to propose")
	case pipeline.StatusPublished:
		fmt.Fprintf(cmd.OutOrStdout(), "proposed update: %s (PR #%d %s)\n",
			outcome.Publish.BranchName, outcome.Publish.PullRequestNumber, outcome.Publish.PullRequestURL)
	}
	return nil
}

// executeExportPipeline assembles and runs the export/publish pipeline.
func executeExportPipeline(cmd *cobra.Command, cfg *config.Config, log *logging.Logger) (*pipeline.Outcome, error) {
	if err := cfg.Publish.Validate(); err != nil {
		return nil, err
	}

	trigger, err := buildTrigger(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("starting export pipeline",
		zap.String("branch", trigger.Branch),
		zap.String("lockfile", cfg.Lockfile.Path),
	)

	remote, err := publish.NewGitHubRemote(cmd.Context(), cfg.Publish.Remote, trigger.Token, cfg.Publish.Retry, log)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(
		treeRoot,
		cfg,
		export.New(cfg.Export.RuntimePath, cfg.Export.DevelopmentPath),
		pipeline.DetectorFunc(diff.Detect),
		publish.New(treeRoot, cfg.Publish, remote, log),
		log,
	)

	return p.Run(cmd.Context(), trigger)
}

// buildTrigger collects per-run metadata from flags, with the checkout as
// fallback for the branch name.
func buildTrigger(cfg *config.Config) (publish.TriggerContext, error) {
	branch := triggerBranch
	if branch == "" {
		detected, err := gitinfo.DetectBranch(treeRoot)
		if err != nil {
			return publish.TriggerContext{}, fmt.Errorf("trigger branch not supplied and not detectable: %w", err)
		}
		branch = detected
	}

	return publish.TriggerContext{
		Branch:      branch,
		AuthorName:  authorName,
		AuthorEmail: authorEmail,
		Token:       cfg.Publish.Token,
	}, nil
}

// describePipelineError prefixes errors with their taxonomy kind so the
// invoking environment never sees an unlabelled failure.
func describePipelineError(err error) error {
	var (
		exportErr *export.Error
		authErr   *publish.AuthError
		netErr    *publish.NetworkError
		confErr   *publish.BranchConflictError
	)
	switch {
	case errors.As(err, &exportErr):
		return fmt.Errorf("export failure: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failure: %w", err)
	case errors.As(err, &netErr):
		return fmt.Errorf("network failure (retries exhausted): %w", err)
	case errors.As(err, &confErr):
		return fmt.Errorf("branch conflict: %w", err)
	default:
		return err
	}
}
