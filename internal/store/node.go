package store

import (
	"runtime"
	"sync/atomic"
)

// nodeFlags is a bitmask tracking a node's maintenance state. Flags
// monotonically accumulate flagDead only after the node has been unhooked
// from its parent's child list.
type nodeFlags int32

const (
	flagOnExpiry nodeFlags = 1 << iota
	flagOnDelete
	flagDead
)

// spinlock is a per-node test-and-set lock, held only for the duration of
// child-list mutations (and, in this implementation, for the handful of
// leaf-metadata fields touched when a deleted leaf is revived by a
// subsequent add — see add's duplicate-key branch in store.go).
type spinlock struct {
	state atomic.Int32
}

func (s *spinlock) Lock() {
	for !s.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	s.state.Store(0)
}

// Node is one trie node: either internal (has at least one child) or a
// leaf (childrenHead is nil), carrying one (key, value, destructor) triple
// in the leaf case. A node in practice holds both sets of fields; only the
// emptiness of the child list distinguishes the two roles, which is what
// lets a leaf be promoted to interior in place during a split.
//
// Invariants:
//   - Exactly one node on any root-to-leaf path owns the key bytes; every
//     node on that path borrows it through keyRef
//   - id is the node's bits-wide slice of the owning key at its level
//   - flags accumulate the dead bit only after the node is unhooked
//
// Thread-safety:
//   - childrenHead and next are atomic.Pointer rather than plain fields so
//     readers descending the trie never race with a sibling add publishing
//     a new node concurrently
//   - Child-list and leaf-metadata edits require the node's spin
type Node struct {
	parent       *Node
	keyRef       *Node // the node owning the key byte slice for this path
	key          []byte
	value        any
	destructor   Destructor
	childrenHead atomic.Pointer[Node]
	next         atomic.Pointer[Node]
	timestamp    atomic.Int64 // UnixNano of the most recent insertion
	flags        atomic.Int32
	spin         spinlock
	id           uint8
	level        int
}

func (n *Node) isLeaf() bool {
	return n.childrenHead.Load() == nil
}

func (n *Node) hasFlag(f nodeFlags) bool {
	return nodeFlags(n.flags.Load())&f != 0
}

// setFlag atomically ORs f into the node's flags.
func (n *Node) setFlag(f nodeFlags) {
	for {
		old := n.flags.Load()
		if nodeFlags(old)&f != 0 {
			return
		}
		if n.flags.CompareAndSwap(old, old|int32(f)) {
			return
		}
	}
}

// clearFlag atomically clears f from the node's flags.
func (n *Node) clearFlag(f nodeFlags) {
	for {
		old := n.flags.Load()
		if nodeFlags(old)&f == 0 {
			return
		}
		if n.flags.CompareAndSwap(old, old&^int32(f)) {
			return
		}
	}
}

// snapshotValue returns the node's value under its spin, for safe reading
// from a concurrent revive (see add's duplicate-key branch).
func (n *Node) snapshotValue() any {
	n.spin.Lock()
	v := n.value
	n.spin.Unlock()
	return v
}
