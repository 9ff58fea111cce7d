// Package pool runs independent per-chunk work on a bounded set of goroutines.
package pool

import (
	"context"
	"sync"
)

// Run calls fn for every item using at most workers goroutines. Results and errors are
// returned at the index of their item, whatever order the work finished in. Once ctx is
// done, items that have not started are skipped and report ctx.Err().
func Run[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}
	workers = max(1, min(workers, len(items)))

	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				results[i], errs[i] = fn(ctx, i, items[i])
			}
		}()
	}

	for i := range items {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return results, errs
}
