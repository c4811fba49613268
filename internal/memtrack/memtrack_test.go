package memtrack

import (
	"sync"
	"testing"
)

func TestCounterBasic(t *testing.T) {
	var c Counter
	if c.Live() != 0 {
		t.Fatalf("new counter Live() = %d, want 0", c.Live())
	}
	c.Alloc()
	c.Alloc()
	c.Free()
	if c.Live() != 1 {
		t.Fatalf("Live() = %d, want 1", c.Live())
	}
	allocs, frees := c.Totals()
	if allocs != 2 || frees != 1 {
		t.Fatalf("Totals() = (%d,%d), want (2,1)", allocs, frees)
	}
}

func TestCounterConcurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	const n = 1000
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Alloc()
		}()
	}
	wg.Wait()
	if c.Live() != n {
		t.Fatalf("Live() = %d, want %d", c.Live(), n)
	}
}
