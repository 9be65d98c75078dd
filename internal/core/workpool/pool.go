// Package workpool bounds how many strategy attempts run at once.
package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Stop
var ErrClosed = errors.New("worker pool is stopped")

// Stats is a point-in-time view of the pool
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}

// Pool runs submitted tasks on a fixed set of worker goroutines
type Pool struct {
	queue   chan func()
	workers int
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	active    atomic.Int64
	completed atomic.Int64
}

// New creates a pool with the given number of workers and queue capacity.
// Call Start before submitting.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 16
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		queue:   make(chan func(), queueSize),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop signals the workers to exit and waits for running tasks. Tasks still
// queued are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case task := <-p.queue:
			p.run(task)
		}
	}
}

func (p *Pool) run(task func()) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
	}()
	task()
}

// Submit queues task, blocking while the queue is full. It gives up when ctx
// is done or the pool is stopped.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

// Stats returns current counters
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.queue),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
	}
}
