// Package retry runs transient-failing calls with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// MaxBackoff caps a single wait.
const MaxBackoff = 30 * time.Second

// Policy configures Do.
type Policy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // doubled per retry
}

// CalculateBackoff returns exponential backoff with jitter.
// Base delay is doubled each attempt, with random jitter of ±25%.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in bit shift
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > MaxBackoff || backoff <= 0 {
		backoff = MaxBackoff
	}
	half := int64(backoff) / 2
	if half <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int64N(half)) - backoff/4
	return backoff + jitter
}

// Retryable reports whether err is a transient upstream failure.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable)
}

// Do calls fn until it succeeds, fails with a non-retryable error, runs out
// of retries, or ctx is done. onRetry (optional) is called before each wait.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(err) || attempt >= p.MaxRetries {
			break
		}

		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		timer := time.NewTimer(CalculateBackoff(p.BaseDelay, attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
	return err
}
