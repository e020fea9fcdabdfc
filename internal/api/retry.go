package api

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/sethvargo/go-retry"
)

// RetryConfig controls retries of transient provider failures. These retries
// happen inside a single executor invocation and are invisible to the
// coordinator's attempt loop.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first call. Zero disables retries.
	MaxRetries uint64
	// BaseDelay is the initial backoff delay.
	BaseDelay time.Duration
	// MaxDelay caps the total backoff duration.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

// withRetry runs fn, retrying transient failures with jittered exponential backoff.
func withRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxRetries == 0 {
		return fn(ctx)
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	backoff := retry.NewExponential(base)
	if cfg.MaxDelay > 0 {
		backoff = retry.WithMaxDuration(cfg.MaxDelay, backoff)
	}
	backoff = retry.WithMaxRetries(cfg.MaxRetries, retry.WithJitter(base/4, backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isTransient reports whether err is worth retrying: rate limits, server
// errors, and network failures. Context cancellation never is.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(anthropicErr.StatusCode)
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return retryableStatus(openaiErr.StatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
