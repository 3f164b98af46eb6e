package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// Sentinel errors for retry logic.
var (
	ErrRetryable = &scopeerr.ScopeError{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: scopeerr.ExitGeneral,
	}

	ErrRateLimited = &scopeerr.ScopeError{
		Code:     "RATE_LIMITED",
		Message:  "rate limited by node",
		ExitCode: scopeerr.ExitGeneral,
	}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries

	// OnRetry, when set, is called before each delayed retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns 3 attempts with delays of roughly 250ms and 500ms.
// Polls repeat every few seconds, so long backoffs only delay the next cycle.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Retry executes the operation with the default retry configuration.
func Retry[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	return RetryWithConfig(ctx, DefaultRetryConfig(), operation)
}

// RetryWithConfig executes the operation, retrying retryable errors with
// jittered exponential backoff.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	var err error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if !IsRetryable(err) {
			return result, err
		}

		if attempt == attempts-1 {
			break
		}

		delay := calculateDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return result, err
	}
	return result, fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
}

// calculateDelay returns a delay in [d/2, d) where d = base * 2^attempt, capped at maxDelay.
func calculateDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half) //nolint:gosec // G404: Jitter does not require cryptographic randomness
}

// IsRetryable returns true if the error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// WrapRetryable wraps an error to mark it as retryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

// ClassifyStatus maps an HTTP status to a retry classification. It returns
// nil for 2xx, not-found for 404, a rate-limit error for 429, a retryable
// error for 5xx and a plain RPC error otherwise.
func ClassifyStatus(status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{"body": body})
	case status == http.StatusTooManyRequests:
		return scopeerr.WithDetails(ErrRateLimited, map[string]string{"status": strconv.Itoa(status)})
	case status >= 500:
		return WrapRetryable(scopeerr.WithDetails(scopeerr.ErrRPC, map[string]string{
			"status": strconv.Itoa(status),
			"body":   body,
		}))
	default:
		return scopeerr.WithDetails(scopeerr.ErrRPC, map[string]string{
			"status": strconv.Itoa(status),
			"body":   body,
		})
	}
}
