package sync

import (
	"context"
	gosync "sync"
)

// DefaultConcurrency is the number of workers used when
// Options.Concurrency is zero or negative.
const DefaultConcurrency = 16

type poolJob struct {
	index int
	task  Task
}

type poolResult struct {
	index int
	err   error
}

// runPool executes jobs on at most workers goroutines. A dispatcher feeds
// an unbuffered jobs channel and a collector drains the results channel,
// calling done for every executed job. After the first error, or once ctx
// is done, the dispatcher stops sending and workers discard any job they
// still receive; jobs already running finish. The first error is returned.
func runPool(
	ctx context.Context,
	workers int,
	jobs []poolJob,
	exec func(context.Context, Task) error,
	done func(index int, err error),
) error {
	if len(jobs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan poolJob)
	results := make(chan poolResult)
	stop := make(chan struct{})
	var stopOnce gosync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	var wg gosync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				select {
				case <-stop:
					continue
				case <-ctx.Done():
					halt()
					continue
				default:
				}

				err := exec(ctx, j.task)
				if err != nil {
					halt()
				}
				results <- poolResult{index: j.index, err: err}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, j := range jobs {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				halt()
				return
			case queue <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var first error
	for r := range results {
		if r.err != nil && first == nil {
			first = r.err
		}
		done(r.index, r.err)
	}

	if first == nil && ctx.Err() != nil {
		first = canceled("sync", "", ctx.Err())
	}
	return first
}
