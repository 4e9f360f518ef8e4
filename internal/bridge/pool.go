// Package bridge moves blocking calls off the cooperative scheduler.
//
// A Scheduler is a single goroutine that runs posted tasks one at a time,
// in order. Tasks must not block. Blocking work (the completion call) is
// handed to a Pool with Invoke, which returns a Future immediately; Await
// posts a continuation back onto the Scheduler once the Future resolves.
// The Invoke call is the only suspension point of a task.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Pool bounds how many blocking calls execute at once. Calls beyond the
// bound wait for a slot without holding up the caller.
type Pool struct {
	sem  *semaphore.Weighted
	size int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int { return p.size }

// Close stops accepting work and waits for dispatched calls to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) add() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// Invoke dispatches fn to the pool and returns without waiting. The Future
// resolves with fn's result, with ctx's error if no slot frees up before
// ctx is done, or with ErrPoolClosed.
func Invoke[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	if !p.add() {
		var zero T
		f.resolve(zero, ErrPoolClosed)
		return f
	}

	go func() {
		defer p.wg.Done()
		var zero T
		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.resolve(zero, err)
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				f.resolve(zero, fmt.Errorf("blocking call panicked: %v", r))
			}
		}()
		v, err := fn(ctx)
		f.resolve(v, err)
	}()
	return f
}

// Future is the pending result of an Invoke.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the Future resolves or ctx is done. Front ends that own
// no scheduler (tests, one-shot tools) use it; scheduler tasks use Await.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
