// Package slab provides a fixed-size object pool so hot paths that
// repeatedly allocate and free same-shaped structures (the event engine's
// per-generation event groups) can recycle them instead of hitting the Go
// allocator on every cycle.
package slab

import "sync"

// Pool recycles *T values. The zero value is not usable; call New.
type Pool[T any] struct {
	pool sync.Pool
	new  func() *T
	wipe func(*T)
}

// New returns a Pool that manufactures values with newFn when empty and
// resets them with resetFn (may be nil) before handing them out from Get.
func New[T any](newFn func() *T, resetFn func(*T)) *Pool[T] {
	p := &Pool[T]{new: newFn, wipe: resetFn}
	p.pool.New = func() any { return newFn() }
	return p
}

// Get returns a recycled or freshly allocated *T, reset to its zero-ish
// state via the Pool's resetFn.
func (p *Pool[T]) Get() *T {
	v := p.pool.Get().(*T)
	if p.wipe != nil {
		p.wipe(v)
	}
	return v
}

// Put returns v to the pool for future reuse. Callers must not touch v
// after calling Put.
func (p *Pool[T]) Put(v *T) {
	p.pool.Put(v)
}
