// Package pool runs independent per-item tasks on a bounded number of goroutines.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run calls fn for every item with at most workers tasks in flight and returns
// the results indexed by input position. A task never aborts its siblings:
// fn reports failure through R. observe, when non-nil, is called serially
// after each task with the running completion count.
//
// Once ctx is cancelled no further items are dispatched; their results are
// left as the zero value of R and Run returns after in-flight tasks finish.
func Run[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, index int, item T) R, observe func(done, total int, r R)) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		done int
	)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r := fn(ctx, i, item)
			results[i] = r
			if observe != nil {
				mu.Lock()
				done++
				observe(done, len(items), r)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
