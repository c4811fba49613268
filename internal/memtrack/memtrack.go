// Package memtrack counts live allocations for long-running structures such
// as the radix store's trie nodes, so
// operators and tests can observe growth without walking the structure
// itself.
package memtrack

import "sync/atomic"

// Counter tracks a balance of Alloc/Free calls for one kind of object.
// The zero value is ready to use.
type Counter struct {
	allocs atomic.Int64
	frees  atomic.Int64
}

// Alloc records the creation of one object.
func (c *Counter) Alloc() {
	c.allocs.Add(1)
}

// Free records the destruction of one object.
func (c *Counter) Free() {
	c.frees.Add(1)
}

// Live returns the current number of allocated-but-not-freed objects.
func (c *Counter) Live() int64 {
	return c.allocs.Load() - c.frees.Load()
}

// Totals returns the lifetime allocation and free counts.
func (c *Counter) Totals() (allocs, frees int64) {
	return c.allocs.Load(), c.frees.Load()
}
