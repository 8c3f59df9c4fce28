package engine

import (
	"context"
	"sync"
)

// pool runs tasks 0..n-1 through fn with at most workers goroutines in
// flight. Cancellation stops dispatching new tasks; tasks already
// picked up run to completion (fn is expected to observe ctx itself
// for long operations).
type pool struct {
	workers int
}

func (p pool) run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	tasks := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				select {
				case <-ctx.Done():
					return
				default:
				}
				fn(ctx, i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(tasks)
			wg.Wait()
			return
		case tasks <- i:
		}
	}
	close(tasks)
	wg.Wait()
}
