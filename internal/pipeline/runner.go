package pipeline

import (
	"context"
	"sync"
)

// Runner owns the background goroutines that execute job pipelines. It
// bounds how many run at once and tracks every task so shutdown can wait
// for in-flight work instead of abandoning it.
type Runner struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a runner allowing at most maxActive concurrent tasks.
func NewRunner(maxActive int) *Runner {
	if maxActive <= 0 {
		maxActive = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:    make(chan struct{}, maxActive),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules the task on a new goroutine. The task receives a context
// that is canceled when the runner closes. Scheduling returns immediately;
// the concurrency bound is enforced inside the goroutine so submission
// never blocks on a full pool. Tasks scheduled after Close are dropped.
func (r *Runner) Go(task func(ctx context.Context)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		select {
		case r.sem <- struct{}{}:
		case <-r.ctx.Done():
			return
		}
		defer func() { <-r.sem }()
		task(r.ctx)
	}()
}

// Close cancels the base context and waits for every scheduled task to
// return. It is safe to call more than once.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}
