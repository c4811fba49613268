// Package threadpool starts background tasks that can be cooperatively
// asked to stop and waited on. It is the leaf collaborator both the radix
// store's single maintenance task and the event engine's listener-GC task
// are built on; the event engine's fixed-size dispatch worker group uses
// golang.org/x/sync/errgroup directly (see eventengine) since that is a
// bounded set of workers that start and stop together rather than
// independently spawned/released tasks.
//
// Cancellation is cooperative: Release only requests that the task's
// context be cancelled. The task observes it at its own sleep/poll point,
// the same shape as health_monitor.go's ticker-select-on-ctx.Done loop.
package threadpool

import (
	"context"
	"sync"
)

// Handle represents one spawned background task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Release requests cooperative cancellation of the task. It does not block.
func (h *Handle) Release() {
	h.cancel()
}

// Wait blocks until the task's entry function has returned.
func (h *Handle) Wait() {
	<-h.done
}

// Pool spawns background tasks sharing a parent context, so Shutdown can
// cancel every still-running task in one call.
type Pool struct {
	mu      sync.Mutex
	parent  context.Context
	cancel  context.CancelFunc
	handles []*Handle
}

// New returns a Pool whose tasks are all descendants of parent.
func New(parent context.Context) *Pool {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool{parent: ctx, cancel: cancel}
}

// Spawn starts entry in its own goroutine, passing it a context that is
// cancelled when either the returned Handle is Released or the Pool is shut
// down. Priority is accepted for interface parity with other schedulers but
// the Go scheduler makes no use of it.
func (p *Pool) Spawn(priority int, entry func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(p.parent)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()

	go func() {
		defer close(h.done)
		entry(ctx)
	}()

	return h
}

// Shutdown cancels every task spawned from this pool and waits for them all
// to return.
func (p *Pool) Shutdown() {
	p.cancel()
	p.mu.Lock()
	handles := p.handles
	p.mu.Unlock()
	for _, h := range handles {
		h.Wait()
	}
}
