// Package pipeline sequences the export/publish job: loop guard, export,
// diff detection, publish. Steps are strictly sequential; each blocks on
// completion of the prior one.
package pipeline

import (
	"context"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/diff"
	"github.com/fyrsmithlabs/lockfix/internal/export"
	"github.com/fyrsmithlabs/lockfix/internal/guard"
	"github.com/fyrsmithlabs/lockfix/internal/lockfile"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/fyrsmithlabs/lockfix/internal/publish"
	"go.uber.org/zap"
)

// Status classifies a successful run.
type Status string

const (
	// StatusSkipped means the loop guard suppressed the run: the trigger
	// branch is itself a fixup branch.
	StatusSkipped Status = "skipped"
	// StatusClean means the manifests matched the lockfile; nothing to
	// propose.
	StatusClean Status = "clean"
	// StatusPublished means a fixup branch and pull request were
	// produced.
	StatusPublished Status = "published"
)

// Outcome is the result of one pipeline run.
type Outcome struct {
	Status  Status
	Publish *publish.Result
}

// Exporter generates the derived manifests.
type Exporter interface {
	ExportAll(lock *lockfile.Lockfile) ([]export.Artifact, error)
}

// Detector compares generated manifests against the working tree.
type Detector interface {
	Detect(artifacts []export.Artifact, treeRoot string) (*diff.ChangeSet, error)
}

// Publisher pushes a fixup branch and opens or updates its pull request.
type Publisher interface {
	Publish(ctx context.Context, changes *diff.ChangeSet, trigger publish.TriggerContext) (*publish.Result, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(artifacts []export.Artifact, treeRoot string) (*diff.ChangeSet, error)

func (f DetectorFunc) Detect(artifacts []export.Artifact, treeRoot string) (*diff.ChangeSet, error) {
	return f(artifacts, treeRoot)
}

// Pipeline is the export/publish job. All collaborators are injected so
// tests can substitute fakes.
type Pipeline struct {
	treeRoot     string
	lockfilePath string
	suffix       string
	exporter     Exporter
	detector     Detector
	publisher    Publisher
	log          *logging.Logger
}

// New assembles a Pipeline.
func New(treeRoot string, cfg *config.Config, exporter Exporter, detector Detector, publisher Publisher, log *logging.Logger) *Pipeline {
	return &Pipeline{
		treeRoot:     treeRoot,
		lockfilePath: cfg.Lockfile.Path,
		suffix:       cfg.Publish.BranchSuffix,
		exporter:     exporter,
		detector:     detector,
		publisher:    publisher,
		log:          log.Named("pipeline"),
	}
}

// Run executes one pipeline run for the given trigger. Skipped and Clean
// outcomes are successes; errors carry the taxonomy types from the
// export and publish packages so the caller can map them to exit codes.
func (p *Pipeline) Run(ctx context.Context, trigger publish.TriggerContext) (*Outcome, error) {
	if !guard.ShouldRun(trigger.Branch, p.suffix) {
		p.log.Info("trigger branch is a fixup branch, refusing to run",
			zap.String("branch", trigger.Branch),
			zap.String("suffix", p.suffix),
		)
		return &Outcome{Status: StatusSkipped}, nil
	}

	lock, err := lockfile.Load(p.lockfilePath)
	if err != nil {
		// A missing or malformed lockfile is an export failure: no
		// artifact is produced, no branch is touched.
		return nil, &export.Error{Mode: "lockfile", Err: err}
	}
	p.log.Debug("lockfile loaded",
		zap.String("path", p.lockfilePath),
		zap.String("hash", lock.Hash()),
	)

	artifacts, err := p.exporter.ExportAll(lock)
	if err != nil {
		return nil, err
	}

	changes, err := p.detector.Detect(artifacts, p.treeRoot)
	if err != nil {
		return nil, err
	}

	if changes.Empty() {
		p.log.Info("manifests match the lockfile, nothing to propose")
		return &Outcome{Status: StatusClean}, nil
	}

	p.log.Info("manifests out of date",
		zap.Int("changed", changes.Len()),
		zap.Strings("paths", changes.Paths()),
	)

	result, err := p.publisher.Publish(ctx, changes, trigger)
	if err != nil {
		return nil, err
	}

	return &Outcome{Status: StatusPublished, Publish: result}, nil
}
