package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrRunnerStopped is returned by Do after Stop.
var ErrRunnerStopped = errors.New("runner stopped")

// runRequest represents a unit of work to be executed on a runner goroutine.
type runRequest struct {
	fn   func() any
	done chan runResult
}

// runResult holds the return value from a run.
type runResult struct {
	value any
	err   error
}

// Runner bounds how many interpreter runs execute at once. Each run is
// single-threaded and independent, so a fixed set of goroutines drains a
// shared queue.
type Runner struct {
	requests chan runRequest
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a Runner and starts size processing goroutines.
func NewRunner(size int) *Runner {
	if size < 1 {
		size = 1
	}
	r := &Runner{
		requests: make(chan runRequest),
		quit:     make(chan struct{}),
	}
	r.wg.Add(size)
	for i := 0; i < size; i++ {
		go r.loop()
	}
	return r
}

// loop processes requests until the runner stops.
func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		select {
		case req := <-r.requests:
			req.done <- r.execute(req.fn)
		case <-r.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (r *Runner) execute(fn func() any) runResult {
	var result runResult
	func() {
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("run panicked: %v", p)
				result.err = fmt.Errorf("%v", p)
			}
		}()
		result.value = fn()
	}()
	return result
}

// Do submits fn and blocks until it completes. Returns the result and any
// error, including a recovered panic. ctx only bounds the wait for a free
// runner; a run that has started is never interrupted.
func (r *Runner) Do(ctx context.Context, fn func() any) (any, error) {
	req := runRequest{
		fn:   fn,
		done: make(chan runResult, 1),
	}
	select {
	case r.requests <- req:
	case <-r.quit:
		return nil, ErrRunnerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-r.quit:
		return nil, ErrRunnerStopped
	}
}

// Stop shuts down the runner goroutines and waits for them to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	r.wg.Wait()
}
