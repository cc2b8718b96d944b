// Package engine implements the transfer state machine shared by download
// and upload: HEAD/CreateMultipartUpload → load/validate checkpoint →
// schedule part workers → verify → finalize.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// runWorkers runs count units of work across at most n concurrent
// goroutines, each pulling the next index from a shared atomic counter.
// A worker stops early only on context cancellation: a per-part failure is
// recorded and the worker moves on to the next index, so the checkpoint
// ends up with as many attempts recorded as possible before the first
// error is raised.
//
// work is called at most once per index, never concurrently for the same
// index. It returns the first error encountered across all workers, or
// ErrCancelled when a worker observes the context cancelled before claiming
// its next index — whichever is captured first.
func runWorkers(ctx context.Context, n, count int, work func(ctx context.Context, index int) error) error {
	if n < 1 {
		n = 1
	}
	if count <= 0 {
		return nil
	}

	var next int64 = -1
	var wg sync.WaitGroup
	firstErr := make(chan error, 1)

	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				select {
				case firstErr <- ErrCancelled:
				default:
				}
				return
			default:
			}

			i := int(atomic.AddInt64(&next, 1))
			if i >= count {
				return
			}

			if err := work(ctx, i); err != nil {
				select {
				case firstErr <- err:
				default:
				}
			}
		}
	}

	workers := n
	if workers > count {
		workers = count
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}
	wg.Wait()

	select {
	case err := <-firstErr:
		return err
	default:
		return nil
	}
}
