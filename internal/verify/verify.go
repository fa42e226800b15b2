// Package verify runs the configured static checks against the checked
// out tree. Every check is a black box: a command that passes when it
// exits zero. The gate shares no state with the export pipeline.
package verify

import (
	"context"
	"os/exec"
	"time"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"go.uber.org/zap"
)

// Result is the outcome of one check.
type Result struct {
	Name     string
	Passed   bool
	Details  string
	Duration time.Duration
}

// Results is the outcome of a full gate run.
type Results []Result

// Passed reports overall success: every check passed.
func (rs Results) Passed() bool {
	for _, r := range rs {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failing checks.
func (rs Results) Failed() Results {
	var failed Results
	for _, r := range rs {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Gate runs checks sequentially against a source tree.
type Gate struct {
	treeRoot string
	timeout  time.Duration
	log      *logging.Logger

	// runCommand is swapped out in tests.
	runCommand func(ctx context.Context, check config.CheckConfig) ([]byte, error)
}

// NewGate creates a Gate rooted at treeRoot with a per-check timeout.
func NewGate(treeRoot string, timeout time.Duration, log *logging.Logger) *Gate {
	g := &Gate{
		treeRoot: treeRoot,
		timeout:  timeout,
		log:      log.Named("verify"),
	}
	g.runCommand = g.execCheck
	return g
}

// Run executes every check and collects per-check results. Check failures
// are results, not errors; the returned error is reserved for the gate
// itself being unable to run. An empty check list passes vacuously so a
// repository without verify configuration is not blocked.
func (g *Gate) Run(ctx context.Context, checks []config.CheckConfig) (Results, error) {
	if len(checks) == 0 {
		g.log.Info("no checks configured, nothing to verify")
		return nil, nil
	}

	results := make(Results, 0, len(checks))
	for _, check := range checks {
		start := time.Now()
		output, err := g.runCommand(ctx, check)
		elapsed := time.Since(start)

		result := Result{
			Name:     check.Name,
			Passed:   err == nil,
			Details:  string(output),
			Duration: elapsed,
		}
		if err != nil {
			if len(output) == 0 {
				result.Details = err.Error()
			}
			g.log.Error("check failed",
				zap.String("check", check.Name),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)
		} else {
			g.log.Info("check passed",
				zap.String("check", check.Name),
				zap.Duration("duration", elapsed),
			)
		}
		results = append(results, result)

		// The gate reports every check, but a canceled run stops here.
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

// execCheck runs one check command with the gate's timeout, capturing
// combined output.
func (g *Gate) execCheck(ctx context.Context, check config.CheckConfig) ([]byte, error) {
	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(checkCtx, check.Command, check.Args...)
	cmd.Dir = g.treeRoot
	if check.Dir != "" {
		cmd.Dir = check.Dir
	}
	return cmd.CombinedOutput()
}
