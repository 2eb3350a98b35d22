package worker

import (
	"context"
	"sync"
)

// Outcome is the explicit per-item result of a fan-out call: either a value
// or a skip with its reason. A failed item never cancels its siblings.
type Outcome[R any] struct {
	Value   R
	Err     error
	Skipped bool
}

// Map fans items out to a bounded number of workers and joins on the full
// set. Results are returned in input order, so any post-barrier reduction
// (ID assignment, merging) is deterministic regardless of completion order.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) []Outcome[R] {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome[R], len(items))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				outcomes[idx] = Outcome[R]{Err: ctx.Err(), Skipped: true}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			value, err := fn(ctx, it)
			if err != nil {
				outcomes[idx] = Outcome[R]{Err: err, Skipped: true}
				return
			}
			outcomes[idx] = Outcome[R]{Value: value}
		}(i, item)
	}

	wg.Wait()
	return outcomes
}

// Collect flattens successful outcomes whose values are slices, preserving
// input order. Skipped items contribute nothing.
func Collect[R any](outcomes []Outcome[[]R]) []R {
	var out []R
	for _, o := range outcomes {
		if o.Skipped {
			continue
		}
		out = append(out, o.Value...)
	}
	return out
}

// SkipErrors returns the errors of all skipped outcomes
func SkipErrors[R any](outcomes []Outcome[R]) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Skipped && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
