package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// retryRemoteOperation retries a remote API operation with exponential
// backoff. Only errors classified as transient (NetworkError) are
// retried; authentication failures and branch conflicts return
// immediately. The operation must return its error already classified.
func retryRemoteOperation(ctx context.Context, cfg config.RetryConfig, log *logging.Logger, op string, operation func() (*github.Response, error)) error {
	var lastErr error
	backoff := cfg.InitialBackoff.Duration()
	startTime := time.Now()

	// MaxRetries -1 disables retries: a single attempt, no backoff.
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := operation()
		if err == nil {
			if attempt > 0 {
				log.Info("remote operation recovered after retries",
					zap.String("operation", op),
					zap.Int("attempts", attempt+1),
					zap.Duration("total_time", time.Since(startTime)),
				)
			}
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			log.Debug("remote operation error is not retryable",
				zap.String("operation", op),
				zap.Error(err),
			)
			return err
		}

		if attempt == maxRetries {
			break
		}

		// Rate limit responses carry a reset time; wait for it instead
		// of the computed backoff.
		wait := backoff
		if resetWait, ok := rateLimitWait(resp, cfg.MaxBackoff.Duration()); ok {
			wait = resetWait
		}

		log.Warn("retrying remote operation after transient error",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return &NetworkError{Op: op, Err: fmt.Errorf("operation canceled: %w", ctx.Err())}
		case <-time.After(wait):
			next := time.Duration(float64(backoff) * cfg.BackoffMultiplier)
			if next > cfg.MaxBackoff.Duration() {
				next = cfg.MaxBackoff.Duration()
			}
			backoff = next
		}
	}

	log.Error("remote operation failed after all retries exhausted",
		zap.String("operation", op),
		zap.Int("total_attempts", maxRetries+1),
		zap.Duration("total_time", time.Since(startTime)),
		zap.Error(lastErr),
	)
	return lastErr
}

// rateLimitWait computes how long to wait for a rate limit reset, capped
// at maxBackoff. Returns false when the response carries no usable rate
// limit information.
func rateLimitWait(resp *github.Response, maxBackoff time.Duration) (time.Duration, bool) {
	if resp == nil || resp.Rate.Limit == 0 || resp.Rate.Remaining > 0 {
		return 0, false
	}

	wait := time.Until(resp.Rate.Reset.Time)
	// Small buffer so the reset has actually happened when we wake up.
	wait += time.Second
	if wait < 0 {
		wait = time.Second
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait, true
}
