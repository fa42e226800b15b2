package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the export and verification jobs concurrently",
	Long: `Run both jobs the way a CI trigger schedules them: as independent
execution units with no ordering guarantee between them. The verification
gate runs on every trigger regardless of the export pipeline's outcome;
the command fails if either job fails.`,
	RunE: runBoth,
}

func runBoth(cmd *cobra.Command, args []string) error {
	var g errgroup.Group

	// The two jobs share no state, only the checked-out tree. A failure
	// in one must not cancel the other, so no shared context is derived;
	// errgroup just collects the first failure.
	g.Go(func() error {
		return runExport(cmd, args)
	})
	g.Go(func() error {
		return runVerify(cmd, args)
	})

	return g.Wait()
}
