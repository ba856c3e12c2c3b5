// Package pool runs stage work on a fixed set of worker goroutines and
// hands back futures that can be awaited with a deadline.
//
// A wait that times out does not stop the task. The task keeps its worker
// until it returns; its result is simply never read.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTimeout is returned by Future.Wait when the deadline passes first.
	ErrTimeout = errors.New("pool: wait timed out")

	// ErrClosed is returned for work submitted after Close.
	ErrClosed = errors.New("pool: closed")

	// ErrSaturated is returned when the queue is full, which happens when
	// abandoned tasks pile up faster than workers finish them.
	ErrSaturated = errors.New("pool: queue full")
)

// queueFactor sizes the task queue relative to the worker count.
const queueFactor = 4

// Pool is a bounded worker pool.
type Pool struct {
	size  int
	tasks chan func()

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	busy atomic.Int64
	wg   sync.WaitGroup
}

// New starts a pool with size workers.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:   size,
		tasks:  make(chan func(), size*queueFactor),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.busy.Add(1)
		task()
		p.busy.Add(-1)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Busy returns the number of workers currently running a task.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int { return len(p.tasks) }

// Close stops accepting work and cancels the context passed to running
// tasks. It does not wait for them.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	close(p.tasks)
}

// Shutdown closes the pool and waits for workers to drain, or for ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool: shutdown: %w", ctx.Err())
	}
}

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done is closed when the task has returned.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task returns or timeout elapses. A non-positive
// timeout only checks whether the task is already done.
func (f *Future[T]) Wait(timeout time.Duration) (T, error) {
	var zero T
	if timeout <= 0 {
		select {
		case <-f.done:
			return f.val, f.err
		default:
			return zero, ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.val, f.err
	case <-timer.C:
		return zero, ErrTimeout
	}
}

// Submit queues fn on p. It never blocks: a closed or saturated pool yields
// a future that is already resolved with the matching error.
func Submit[T any](p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	var zero T

	task := func() {
		defer func() {
			if r := recover(); r != nil {
				f.resolve(zero, fmt.Errorf("pool: task panicked: %v", r))
			}
		}()
		v, err := fn(p.ctx)
		f.resolve(v, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		f.resolve(zero, ErrClosed)
		return f
	}
	select {
	case p.tasks <- task:
	default:
		f.resolve(zero, ErrSaturated)
	}
	return f
}
