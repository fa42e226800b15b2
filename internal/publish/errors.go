package publish

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// AuthError is fatal: the remote rejected the supplied token. It is never
// retried.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is transient: the remote or the transport misbehaved in a
// way that is safe to retry, because every publish step is idempotent
// when the branch and PR already exist.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BranchConflictError is fatal: the remote refused the forced update of
// the fixup ref (for example a protected branch). It is never retried.
type BranchConflictError struct {
	Branch string
	Err    error
}

func (e *BranchConflictError) Error() string {
	return fmt.Sprintf("branch conflict on %q: %v", e.Branch, e.Err)
}

func (e *BranchConflictError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may be retried. Only NetworkError
// qualifies; AuthError and BranchConflictError are terminal.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// classifyGitHubError maps a go-github call outcome onto the error
// taxonomy. 401 and non-rate-limit 403 are authentication failures; 429,
// rate-limited 403 and 5xx are transient; everything else is surfaced
// as-is with operation context.
func classifyGitHubError(op string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}

	if resp != nil && resp.Response != nil {
		switch code := resp.Response.StatusCode; {
		case code == http.StatusUnauthorized:
			return &AuthError{Op: op, Err: err}
		case code == http.StatusForbidden:
			// Forbidden with rate limit headers is a secondary rate
			// limit, not a credential problem.
			if resp.Rate.Limit > 0 && resp.Rate.Remaining == 0 {
				return &NetworkError{Op: op, Err: err}
			}
			return &AuthError{Op: op, Err: err}
		case code == http.StatusTooManyRequests:
			return &NetworkError{Op: op, Err: err}
		case code >= 500 && code < 600:
			return &NetworkError{Op: op, Err: err}
		default:
			// 404, 422 and friends are neither credential nor transport
			// problems; keep them labeled so no failure reaches the
			// invoking environment unclassified.
			return fmt.Errorf("remote API failure during %s: %w", op, err)
		}
	}

	// No HTTP response at all: transport-level failure, retryable.
	return &NetworkError{Op: op, Err: err}
}
