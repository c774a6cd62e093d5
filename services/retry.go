package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how often a transaction that lost a race is re-run.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 25 * time.Millisecond, MaxDelay: time.Second}
}

// Backoff returns the wait before retry number attempt (zero based):
// BaseDelay doubled per attempt, capped at MaxDelay, plus up to 50% jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if half := int64(delay / 2); half > 0 {
		delay += time.Duration(rand.Int64N(half))
	}
	return delay
}

// Do runs op until it succeeds, returns an error retryable rejects, or the
// attempts run out. onRetry, when set, is told about each retry before the
// wait. The last error is returned wrapped so errors.Is still sees it.
func (p RetryPolicy) Do(
	ctx context.Context,
	op func(ctx context.Context) error,
	retryable func(error) bool,
	onRetry func(attempt int, delay time.Duration, err error),
) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = op(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry interrupted (%v): %w", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
