package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PoolOptions configures Map.
type PoolOptions struct {
	// Concurrency caps the number of jobs running at once. Values < 1 mean 1.
	Concurrency int
	// Stagger delays the i-th claimed job by i × Stagger before it starts.
	Stagger time.Duration
}

// Map runs job for every item with at most opts.Concurrency jobs in flight and
// returns the results in input order, regardless of completion order.
//
// Workers claim indices from a shared cursor, so every item is claimed exactly
// once. Items are claimed in index order; the i-th claimed item sleeps
// i × opts.Stagger before starting. Once ctx is done, items that have not
// started (including those still in their stagger wait) resolve to
// cancelled(index, item) instead of running. In-flight jobs see the cancelled
// ctx and are expected to return promptly; Map always waits for them.
func Map[T, R any](
	ctx context.Context,
	items []T,
	opts PoolOptions,
	job func(ctx context.Context, index int, item T) R,
	cancelled func(index int, item T) R,
) []R {
	n := len(items)
	results := make([]R, n)
	if n == 0 {
		return results
	}

	limit := max(1, min(opts.Concurrency, n))

	var cursor atomic.Int64
	var wg sync.WaitGroup
	for range limit {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(cursor.Add(1) - 1)
				if idx >= n {
					return
				}

				if ctx.Err() != nil {
					results[idx] = cancelled(idx, items[idx])
					continue
				}

				if idx > 0 && opts.Stagger > 0 {
					if !sleepCtx(ctx, time.Duration(idx)*opts.Stagger) {
						results[idx] = cancelled(idx, items[idx])
						continue
					}
				}

				results[idx] = job(ctx, idx, items[idx])
			}
		}()
	}

	wg.Wait()
	return results
}

// sleepCtx sleeps for d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
