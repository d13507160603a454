package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default number of concurrent workers
const DefaultConcurrency = 4

// BulkResult is the outcome of one per-plant operation.
type BulkResult struct {
	ID      string `json:"plant_id"`
	Success bool   `json:"success"`
	Error   error  `json:"-"`
	Data    any    `json:"data,omitempty"`
}

// runBulkOperation runs operation for every ID with bounded parallelism.
// Results keep the order of ids; a failed ID does not stop the others.
func runBulkOperation[T any](
	ctx context.Context,
	ids []string,
	concurrency int64,
	progress bool,
	errOut io.Writer,
	operation func(ctx context.Context, id string) (T, error),
) []BulkResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if errOut == nil {
		errOut = io.Discard
	}

	sem := semaphore.NewWeighted(concurrency)
	results := make([]BulkResult, len(ids))
	total := len(ids)
	var (
		done    int64
		writeMu sync.Mutex
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		results[i] = BulkResult{ID: id}
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Error = err
				return nil
			}
			defer sem.Release(1)

			if err := ctx.Err(); err != nil {
				results[i].Error = err
				return nil
			}

			data, err := operation(ctx, id)
			if err != nil {
				results[i].Error = err
			} else {
				results[i].Success = true
				results[i].Data = data
			}

			if progress && total > 0 {
				current := atomic.AddInt64(&done, 1)
				writeMu.Lock()
				_, _ = fmt.Fprintf(errOut, "\rFetched %d/%d", current, total)
				writeMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if progress && total > 0 {
		_, _ = fmt.Fprintf(errOut, "\rFetched %d/%d\n", atomic.LoadInt64(&done), total)
	}
	return results
}

// countResults returns success and failure counts from bulk results
func countResults(results []BulkResult) (success, failure int) {
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return
}
