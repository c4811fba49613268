package store

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dreamware/substrate/internal/bitops"
	"github.com/dreamware/substrate/internal/list"
	"github.com/dreamware/substrate/internal/logging"
	"github.com/dreamware/substrate/internal/memtrack"
	"github.com/dreamware/substrate/internal/rwlock"
	"github.com/dreamware/substrate/internal/threadpool"
)

// Destructor is invoked when a leaf is physically reclaimed by the
// maintenance pass.
//
// Behavior:
//   - Called at most once per owned value
//   - Never fires while the store still considers the entry live
//   - Receives the key bytes the entry was stored under and its value
//
// Thread-safety:
//   - Invoked from the maintenance goroutine, from a goroutine calling
//     Prune, or from Terminate's caller; never concurrently for the same
//     entry
//   - Must not call back into the store; a store lock (the writer lock,
//     or the reader lock during an expiry pass) is held
type Destructor func(key []byte, value any)

// ErrInvalidConfig is returned by New when a construction parameter is out
// of range.
//
// Usage pattern:
//
//	s, err := store.New(4, 4, time.Minute)
//	if err == store.ErrInvalidConfig {
//	    // reject the configuration
//	}
var ErrInvalidConfig = errors.New("store: invalid configuration")

// Store is a concurrent, trie-based key/value store over fixed-width byte
// keys. Keys are treated as an opaque bitstream sliced most-significant-bit
// first into per-level trie indices.
//
// All operations guarantee:
//   - Thread-safety for any mix of concurrent Add/Find/Delete callers
//   - Deletion is logical; memory is reclaimed by a background prune
//   - An inserted entry expires automatically one lifespan after its most
//     recent insertion
//   - Destructors run at most once per owned value
//
// Implementation notes:
//   - Add/Find/Delete hold the shared (reader) lock; only Prune takes the
//     exclusive (writer) lock
//   - Child-list edits are guarded by a per-node test-and-set spin lock
//   - Expiry and delete bookkeeping use lock-free head-prepend lists
//
// The zero value is not usable; construct one with New.
type Store struct {
	root        *Node
	lock        *rwlock.RWLock
	expiryList  list.Stack[*Node]
	deleteList  list.Stack[*Node]
	pool        *threadpool.Pool
	maintenance *threadpool.Handle
	nodes       memtrack.Counter
	log         logging.Logger

	keyBytes int
	bits     int
	lifespan time.Duration
	depth    int
}

// New creates a store keyed on keyBytes-byte keys, consuming bits bits of
// key per trie level, and starts its background maintenance goroutine.
//
// Behavior:
//   - Trie depth is fixed at ceil(8*keyBytes / bits)
//   - An inserted leaf becomes eligible for automatic deletion lifespan
//     after its most recent insertion
//   - The maintenance goroutine wakes once per lifespan to expire and prune
//
// Parameters:
//   - keyBytes: exact key length in bytes (must be >= 1)
//   - bits: key bits consumed per trie level (must be in [1, 8])
//   - lifespan: entry time-to-live (must be > 0)
//
// Returns:
//   - A running store on success
//   - ErrInvalidConfig if any parameter is out of range
func New(keyBytes, bits int, lifespan time.Duration) (*Store, error) {
	if bits < 1 || bits > 8 || keyBytes < 1 || lifespan <= 0 {
		return nil, ErrInvalidConfig
	}

	s := &Store{
		root:     &Node{level: -1},
		lock:     rwlock.New(),
		pool:     threadpool.New(context.Background()),
		log:      logging.Default().Named("store"),
		keyBytes: keyBytes,
		bits:     bits,
		lifespan: lifespan,
		depth:    bitops.Depth(keyBytes, bits),
	}
	s.maintenance = s.pool.Spawn(0, s.maintenanceLoop)
	return s, nil
}

// Add inserts value under key.
//
// Behavior:
//   - Copies the key bytes; the caller's slice is not retained
//   - Re-adding a logically deleted, not-yet-pruned key revives the leaf
//     in place with the new value and a fresh timestamp
//   - A failed call leaves the store unmodified
//
// Thread-safety:
//   - Safe for concurrent calls; holds the shared lock for the whole
//     descent, plus per-node spins for child-list edits
//   - Blocks only while a Prune holds the exclusive lock
//
// Performance:
//   - O(depth) descent; sibling scans are O(1) expected with randomized
//     keys
//
// Parameters:
//   - key: exactly keyBytes long
//   - value: opaque payload, may be nil
//   - dtor: invoked when the entry is physically reclaimed, may be nil
//
// Returns:
//   - true on insertion (or revival)
//   - false if the key length is wrong or a live leaf for key exists
func (s *Store) Add(key []byte, value any, dtor Destructor) bool {
	if len(key) != s.keyBytes {
		return false
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.addFrom(s.root, key, value, dtor, 0)
}

// addFrom descends the trie from current (already matched at the given
// level) inserting key. Each iteration resolves to one of three outcomes:
// no child matches the slice (insert a new leaf here), a leaf matches with
// the same full key (duplicate or revive), or a leaf matches with a
// different key (split). The loop re-enters one level deeper after a split
// or a lost race, which is how "restart descent" is expressed here.
func (s *Store) addFrom(current *Node, key []byte, value any, dtor Destructor, level int) bool {
	for {
		id := bitops.Extract(key, level*s.bits, s.bits)

		current.spin.Lock()
		match := firstChild(current)
		for match != nil && match.id != id {
			match = match.next.Load()
		}
		if match == nil {
			leaf := s.newLeaf(current, id, level, key, value, dtor)
			leaf.next.Store(current.childrenHead.Load())
			current.childrenHead.Store(leaf)
			current.spin.Unlock()

			s.nodes.Alloc()
			s.pushExpiry(leaf)
			return true
		}
		current.spin.Unlock()

		if !match.isLeaf() {
			current = match
			level++
			continue
		}

		// A sibling flagged on the delete list was not skipped by the scan
		// above: it collides like any live node, which is what lets the
		// duplicate/revive branch below run instead of a second leaf with
		// the same key being created alongside it before the next prune.
		done, result := s.addAtLeaf(match, key, value, dtor)
		if done {
			return result
		}
		// Lost a race, or the leaf was just promoted to interior: retry
		// from match at the next level.
		current = match
		level++
	}
}

// addAtLeaf handles descent outcomes 2 and 3: match is a leaf that either
// owns the same key (duplicate, or a revive of a logically-deleted entry)
// or a different key that forces a split. done is false when the caller
// should retry the descent one level deeper from match.
func (s *Store) addAtLeaf(leaf *Node, key []byte, value any, dtor Destructor) (done, result bool) {
	leaf.spin.Lock()

	if !leaf.isLeaf() {
		// Another goroutine already split this leaf.
		leaf.spin.Unlock()
		return false, false
	}

	if bytes.Equal(leaf.keyRef.key, key) {
		if !leaf.hasFlag(flagOnDelete) {
			leaf.spin.Unlock()
			return true, false // genuine duplicate
		}
		// Revive: the leaf was logically deleted but not yet pruned.
		leaf.clearFlag(flagOnDelete)
		leaf.value = value
		leaf.destructor = dtor
		leaf.timestamp.Store(time.Now().UnixNano())
		if !leaf.hasFlag(flagOnExpiry) {
			// An expiry pass dropped it while it was marked; track it again.
			s.pushExpiry(leaf)
		}
		leaf.spin.Unlock()
		return true, true
	}

	// Different key sharing this prefix: promote leaf to interior and push
	// its data down one level into a new leaf.
	pushedDown := &Node{
		parent:     leaf,
		level:      leaf.level + 1,
		value:      leaf.value,
		destructor: leaf.destructor,
		keyRef:     leaf.keyRef,
	}
	pushedDown.id = bitops.Extract(leaf.keyRef.key, pushedDown.level*s.bits, s.bits)
	pushedDown.timestamp.Store(leaf.timestamp.Load())
	leaf.value = nil
	leaf.destructor = nil
	if leaf.hasFlag(flagOnDelete) {
		// The pending delete belongs to the entry being pushed down, not to
		// the prefix node the new key will share; Prune skips the leaf's
		// now-stale delete-list entry.
		leaf.clearFlag(flagOnDelete)
		pushedDown.setFlag(flagOnDelete)
		s.deleteList.Push(&list.Node[*Node]{Value: pushedDown})
	}
	leaf.childrenHead.Store(pushedDown)
	leaf.spin.Unlock()

	s.nodes.Alloc()
	s.pushExpiry(pushedDown)

	return false, false
}

func (s *Store) newLeaf(parent *Node, id uint8, level int, key []byte, value any, dtor Destructor) *Node {
	leaf := &Node{
		parent:     parent,
		id:         id,
		level:      level,
		value:      value,
		destructor: dtor,
	}
	leaf.keyRef = leaf
	leaf.key = append([]byte(nil), key...)
	leaf.timestamp.Store(time.Now().UnixNano())
	return leaf
}

// Find reports whether a live leaf matches key.
//
// Behavior:
//   - Invokes cb with the key and value while the leaf's existence is
//     guaranteed; after cb returns there is no such guarantee
//   - A leaf marked for deletion is treated as absent
//   - Observes any Add that returned true before this call started,
//     concurrent deletes aside
//
// Thread-safety:
//   - Safe for concurrent calls; cb runs under the shared lock, so it must
//     not call Prune or Terminate
//
// Performance:
//   - Traverses at most ceil(8*keyBytes / bits) + 1 nodes
//
// Parameters:
//   - key: exactly keyBytes long
//   - cb: may be nil when only existence matters
//
// Returns:
//   - true iff a live leaf matches key
func (s *Store) Find(key []byte, cb func(key []byte, value any)) bool {
	if len(key) != s.keyBytes {
		return false
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	node, ok := s.lookup(key)
	if !ok {
		return false
	}
	if cb != nil {
		cb(key, node.snapshotValue())
	}
	return true
}

// lookup descends the trie for key, treating any node on the delete list
// as absent. Caller must hold the reader lock.
func (s *Store) lookup(key []byte) (*Node, bool) {
	current := s.root
	level := 0
	for {
		id := bitops.Extract(key, level*s.bits, s.bits)

		current.spin.Lock()
		match := firstChild(current)
		for match != nil {
			if match.id == id && !match.hasFlag(flagOnDelete) {
				break
			}
			match = match.next.Load()
		}
		current.spin.Unlock()

		if match == nil {
			return nil, false
		}
		if match.isLeaf() {
			if bytes.Equal(match.keyRef.key, key) {
				return match, true
			}
			return nil, false
		}
		current = match
		level++
	}
}

// Delete marks the live leaf for key as logically deleted.
//
// Behavior:
//   - Removal is logical: the leaf stays linked but becomes invisible to
//     Find immediately; memory is reclaimed by a later Prune
//   - Idempotent in effect: a second Delete of the same key returns false
//   - The destructor does not run here; it runs at physical reclaim
//
// Thread-safety:
//   - Safe for concurrent calls; holds the shared lock plus the target's
//     spin for the flag-and-enqueue step
//
// Parameters:
//   - key: exactly keyBytes long
//
// Returns:
//   - true iff a live leaf was marked by this call
//   - false if the key length is wrong, no leaf matches, or it was
//     already marked
func (s *Store) Delete(key []byte) bool {
	if len(key) != s.keyBytes {
		return false
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	node, ok := s.lookup(key)
	if !ok {
		return false
	}
	return s.markDeleted(node)
}

// markDeleted flags node for physical removal and pushes it onto the
// delete list, assuming the caller already holds the reader lock. It
// returns false if the node was already marked.
func (s *Store) markDeleted(node *Node) bool {
	node.spin.Lock()
	already := node.hasFlag(flagOnDelete)
	if !already {
		node.setFlag(flagOnDelete)
	}
	node.spin.Unlock()
	if already {
		return false
	}
	s.deleteList.Push(&list.Node[*Node]{Value: node})
	return true
}

func (s *Store) pushExpiry(n *Node) {
	n.setFlag(flagOnExpiry)
	s.expiryList.Push(&list.Node[*Node]{Value: n})
}

// firstChild returns current's first child, if any.
func firstChild(current *Node) *Node {
	return current.childrenHead.Load()
}

// LiveNodes reports the number of trie nodes currently allocated (internal
// and leaf), for tests and diagnostics.
//
// Thread-safety:
//   - Safe for concurrent calls; a single atomic read per counter
func (s *Store) LiveNodes() int64 {
	return s.nodes.Live()
}

// Depth returns ceil(8*K / B), the maximum number of levels the trie can
// have for this store's configuration.
func (s *Store) Depth() int {
	return s.depth
}

// Terminate shuts the store down.
//
// Behavior:
//   - Stops the maintenance goroutine and waits for it to exit
//   - Invokes every remaining leaf's destructor exactly once
//   - Calling any other method after Terminate returns is undefined
//
// Thread-safety:
//   - Synchronous; takes the exclusive lock, so it waits out in-flight
//     readers
//   - Must be called exactly once, by one goroutine
func (s *Store) Terminate() {
	s.maintenance.Release()
	s.maintenance.Wait()
	s.pool.Shutdown()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.terminateSubtree(s.root)

	// Nodes already unhooked by Prune but still waiting on the expiry pass
	// are no longer reachable from the root; finalize them here.
	for n := s.expiryList.Drain(); n != nil; n = n.Next {
		if n.Value.hasFlag(flagDead) {
			s.finalizeNode(n.Value)
		}
	}
}

func (s *Store) terminateSubtree(n *Node) {
	for child := n.childrenHead.Load(); child != nil; {
		next := child.next.Load()
		s.terminateSubtree(child)
		child = next
	}
	if n == s.root {
		return
	}
	if n.destructor != nil {
		n.destructor(n.keyRef.key, n.value)
	}
	s.nodes.Free()
}
