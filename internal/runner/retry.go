package runner

import (
	"context"
	"time"
)

// RetryPolicy decides whether and when to re-run a single invocation.
type RetryPolicy[R any] struct {
	// Attempts is the total number of tries, including the first. Values < 1 mean 1.
	Attempts int
	// ShouldRetry reports whether a result is worth another attempt.
	ShouldRetry func(R) bool
	// Backoff returns the delay after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// OnRetry, if set, is called before sleeping for a retry.
	OnRetry func(attempt int, result R, delay time.Duration)
}

// LinearBackoff returns a backoff that waits base × attempt.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Retry runs fn until it returns a result that ShouldRetry rejects, the attempt
// budget is spent, or ctx is done during a backoff wait. It returns the last
// result and the number of attempts made.
func Retry[R any](ctx context.Context, p RetryPolicy[R], fn func(ctx context.Context, attempt int) R) (R, int) {
	attempts := max(1, p.Attempts)

	var result R
	for attempt := 1; attempt <= attempts; attempt++ {
		result = fn(ctx, attempt)

		if attempt == attempts || p.ShouldRetry == nil || !p.ShouldRetry(result) {
			return result, attempt
		}
		if ctx.Err() != nil {
			return result, attempt
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, result, delay)
		}
		if !sleepCtx(ctx, delay) {
			return result, attempt
		}
	}

	return result, attempts
}
