// Package chain holds the request policies shared by every remote chain
// endpoint: retry with exponential backoff and per-endpoint rate limiting.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// Sentinel errors for retry logic.
var (
	ErrRetryable = &ccerr.Error{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: ccerr.ExitNetwork,
	}

	ErrTimeout = &ccerr.Error{
		Code:     "TIMEOUT",
		Message:  "operation timed out",
		ExitCode: ccerr.ExitNetwork,
	}

	ErrRateLimited = &ccerr.Error{
		Code:     "RATE_LIMITED",
		Message:  "rate limited",
		ExitCode: ccerr.ExitNetwork,
	}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns the default retry configuration.
// 4 attempts total (1 initial + 3 retries) with delays around 1s, 2s, 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
	}
}

// RetryWithConfig executes the operation with the specified retry configuration.
// Only errors classified by IsRetryable are retried; anything else is returned
// after the first attempt.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	attempts := 0

	err := backoff.Retry(func() error {
		attempts++
		out, err := operation()
		if err != nil {
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = out
		return nil
	}, newBackOff(ctx, cfg))
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return result, ctxErr
	}
	if IsRetryable(err) && attempts >= cfg.MaxAttempts {
		return result, fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
	}
	return result, err
}

// newBackOff builds the backoff policy for cfg: delays double from BaseDelay,
// are capped at MaxDelay and carry +/-50% jitter.
func newBackOff(ctx context.Context, cfg RetryConfig) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0

	retries := 0
	if cfg.MaxAttempts > 1 {
		retries = cfg.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx) //nolint:gosec // G115: retries is non-negative
}

// IsRetryable returns true if the error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// ParseRetryAfter parses the Retry-After header value.
// Returns the duration to wait, or 0 if parsing fails.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

// WrapRetryable wraps an error to mark it as retryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}
