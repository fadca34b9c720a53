// Package util holds small concurrency helpers.
package util

import (
	"context"
	"sync"
)

// Parallel calls fn for every input with at most workerLimit calls in flight.
// fn receives the input's index so callers can write results into a
// preallocated slice. The first error cancels the remaining work and is
// returned.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(ctx context.Context, i int, item T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type task struct {
		i    int
		item T
	}
	tasks := make(chan task)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for w := 0; w < min(workerLimit, len(inputs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if err := fn(ctx, t.i, t.item); err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i, item := range inputs {
			select {
			case <-ctx.Done():
				return
			case tasks <- task{i, item}:
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}
