package publish

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) config.RetryConfig {
	return config.RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    config.Duration(time.Millisecond),
		MaxBackoff:        config.Duration(5 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}
}

func TestRetryTransientErrorUntilSuccess(t *testing.T) {
	attempts := 0
	err := retryRemoteOperation(context.Background(), fastRetry(3), logging.NewTestLogger().Logger, "test", func() (*github.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, &NetworkError{Op: "test", Err: errors.New("boom")}
		}
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustionPromotesToFailure(t *testing.T) {
	attempts := 0
	err := retryRemoteOperation(context.Background(), fastRetry(2), logging.NewTestLogger().Logger, "test", func() (*github.Response, error) {
		attempts++
		return nil, &NetworkError{Op: "test", Err: errors.New("still down")}
	})
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestRetryDisabledBySentinel(t *testing.T) {
	attempts := 0
	err := retryRemoteOperation(context.Background(), fastRetry(-1), logging.NewTestLogger().Logger, "test", func() (*github.Response, error) {
		attempts++
		return nil, &NetworkError{Op: "test", Err: errors.New("boom")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "max_retries -1 means a single attempt")
}

func TestRetryNeverRetriesAuthFailure(t *testing.T) {
	attempts := 0
	err := retryRemoteOperation(context.Background(), fastRetry(5), logging.NewTestLogger().Logger, "test", func() (*github.Response, error) {
		attempts++
		return nil, &AuthError{Op: "test", Err: errors.New("bad credentials")}
	})
	require.Error(t, err)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, attempts)
}

func TestRetryNeverRetriesBranchConflict(t *testing.T) {
	attempts := 0
	err := retryRemoteOperation(context.Background(), fastRetry(5), logging.NewTestLogger().Logger, "test", func() (*github.Response, error) {
		attempts++
		return nil, &BranchConflictError{Branch: "main-fixup", Err: errors.New("protected")}
	})
	require.Error(t, err)
	var confErr *BranchConflictError
	assert.ErrorAs(t, err, &confErr)
	assert.Equal(t, 1, attempts)
}

func TestRetryStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cfg := config.RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    config.Duration(time.Hour),
		MaxBackoff:        config.Duration(time.Hour),
		BackoffMultiplier: 2.0,
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := retryRemoteOperation(ctx, cfg, logging.NewTestLogger().Logger, "test", func() (*github.Response, error) {
		attempts++
		return nil, &NetworkError{Op: "test", Err: errors.New("boom")}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "cancellation interrupts the backoff wait")
}

func TestRateLimitWait(t *testing.T) {
	t.Run("no rate info", func(t *testing.T) {
		_, ok := rateLimitWait(nil, time.Minute)
		assert.False(t, ok)

		_, ok = rateLimitWait(&github.Response{}, time.Minute)
		assert.False(t, ok)
	})

	t.Run("exhausted limit waits for reset", func(t *testing.T) {
		resp := &github.Response{
			Rate: github.Rate{
				Limit:     5000,
				Remaining: 0,
				Reset:     github.Timestamp{Time: time.Now().Add(10 * time.Second)},
			},
		}
		wait, ok := rateLimitWait(resp, time.Minute)
		require.True(t, ok)
		assert.Greater(t, wait, 5*time.Second)
		assert.LessOrEqual(t, wait, time.Minute)
	})

	t.Run("wait is capped", func(t *testing.T) {
		resp := &github.Response{
			Rate: github.Rate{
				Limit:     5000,
				Remaining: 0,
				Reset:     github.Timestamp{Time: time.Now().Add(time.Hour)},
			},
		}
		wait, ok := rateLimitWait(resp, time.Minute)
		require.True(t, ok)
		assert.Equal(t, time.Minute, wait)
	})

	t.Run("past reset still waits a moment", func(t *testing.T) {
		resp := &github.Response{
			Rate: github.Rate{
				Limit:     5000,
				Remaining: 0,
				Reset:     github.Timestamp{Time: time.Now().Add(-time.Minute)},
			},
		}
		wait, ok := rateLimitWait(resp, time.Minute)
		require.True(t, ok)
		assert.Greater(t, wait, time.Duration(0))
	})
}

func TestClassifyGitHubError(t *testing.T) {
	respWithStatus := func(code int) *github.Response {
		return &github.Response{Response: &http.Response{StatusCode: code}}
	}

	tests := []struct {
		name      string
		resp      *github.Response
		wantAuth  bool
		wantNet   bool
		wantPlain bool
	}{
		{name: "401 is auth", resp: respWithStatus(http.StatusUnauthorized), wantAuth: true},
		{name: "403 without rate info is auth", resp: respWithStatus(http.StatusForbidden), wantAuth: true},
		{
			name: "403 with exhausted rate limit is transient",
			resp: &github.Response{
				Response: &http.Response{StatusCode: http.StatusForbidden},
				Rate:     github.Rate{Limit: 5000, Remaining: 0},
			},
			wantNet: true,
		},
		{name: "429 is transient", resp: respWithStatus(http.StatusTooManyRequests), wantNet: true},
		{name: "500 is transient", resp: respWithStatus(http.StatusInternalServerError), wantNet: true},
		{name: "503 is transient", resp: respWithStatus(http.StatusServiceUnavailable), wantNet: true},
		{name: "404 is surfaced as-is", resp: respWithStatus(http.StatusNotFound), wantPlain: true},
		{name: "422 is surfaced as-is", resp: respWithStatus(http.StatusUnprocessableEntity), wantPlain: true},
		{name: "no response is transient", resp: nil, wantNet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGitHubError("op", tt.resp, errors.New("api error"))
			require.Error(t, err)

			var authErr *AuthError
			var netErr *NetworkError
			assert.Equal(t, tt.wantAuth, errors.As(err, &authErr), "AuthError")
			assert.Equal(t, tt.wantNet, errors.As(err, &netErr), "NetworkError")
			if tt.wantPlain {
				assert.False(t, errors.As(err, &authErr) || errors.As(err, &netErr))
				assert.Contains(t, err.Error(), "remote API failure", "fallthrough errors stay labeled")
			}
		})
	}

	assert.NoError(t, classifyGitHubError("op", nil, nil))
}
