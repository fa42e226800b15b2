package main

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/lockfix/internal/verify"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the configured static checks against the source tree",
	Long: `Run every configured check command against the checked-out tree.
The command exits non-zero if any check fails; each failing check's
output is printed verbatim.

Examples:
  lockfix verify
  lockfix verify --tree /path/to/checkout`,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gate := verify.NewGate(treeRoot, cfg.Verify.CheckTimeout.Duration(), log)
	results, err := gate.Run(cmd.Context(), cfg.Verify.Checks)
	if err != nil {
		return fmt.Errorf("verification gate could not run: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no checks configured, nothing to verify")
		return nil
	}

	for _, result := range results {
		status := "ok"
		if !result.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s (%s)\n", status, result.Name, result.Duration.Round(time.Millisecond))
	}

	if failed := results.Failed(); len(failed) > 0 {
		for _, result := range failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "--- %s ---\n%s\n", result.Name, result.Details)
		}
		return fmt.Errorf("verification failed: %d of %d checks failed", len(failed), len(results))
	}
	return nil
}
