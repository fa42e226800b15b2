// Package guard decides whether the export pipeline may run at all.
//
// A fixup branch, once pushed, would itself trigger the pipeline again,
// opening a cascading chain of fixup pull requests. The guard breaks the
// cycle by refusing to act on any ref that is already a product of the
// pipeline.
package guard

import "strings"

// ShouldRun reports whether the pipeline should run for the triggering
// branch. It is false exactly when the branch name ends with the fixup
// suffix. The check is purely syntactic: a human-created branch that
// happens to end with the suffix is also skipped, which is accepted.
func ShouldRun(branch, suffix string) bool {
	return !strings.HasSuffix(branch, suffix)
}
