package store

import (
	"context"
	"time"

	"github.com/dreamware/substrate/internal/list"
)

// maintenanceLoop is the store's single background task, spawned from New.
// It wakes once per lifespan interval, runs an expiry pass, and then prunes
// whatever has accumulated on the delete list — the same
// ticker-select-on-ctx.Done shape as health_monitor.go.
func (s *Store) maintenanceLoop(ctx context.Context) {
	s.log.Debug("maintenance loop starting")
	ticker := time.NewTicker(s.lifespan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("maintenance loop stopping")
			return
		case <-ticker.C:
			before := s.nodes.Live()
			s.expiryPass()
			s.Prune()
			if freed := before - s.nodes.Live(); freed > 0 {
				s.log.Debugf("maintenance cycle reclaimed %d nodes", freed)
			}
		}
	}
}

// expiryPass walks a detached snapshot of the expiry list, moving any leaf
// whose lifespan has elapsed onto the delete list and re-queuing everything
// still alive for the next pass. A node already flagged dead was unhooked
// by a prior Prune but deferred here (see pruneNode) because it was still
// on this list when pruned; it is finalized now instead.
//
// The whole walk runs under a single held reader lock rather than
// re-acquired per node, which is what lets it call markDeleted (which
// assumes the lock is already held) directly instead of the lock-taking
// Delete — recursing through Delete here would deadlock against a writer
// (Prune) queued behind this same reader.
func (s *Store) expiryPass() {
	snapshot := s.expiryList.Drain()
	if snapshot == nil {
		return
	}

	cutoff := s.lifespan.Nanoseconds()
	now := time.Now().UnixNano()

	s.lock.RLock()
	defer s.lock.RUnlock()

	for n := snapshot; n != nil; n = n.Next {
		node := n.Value
		switch {
		case node.hasFlag(flagDead):
			node.clearFlag(flagOnExpiry)
			s.finalizeNode(node)
		case node.hasFlag(flagOnDelete):
			// Already queued for deletion some other way; stop tracking
			// it for expiry, Prune will finish the job.
			node.clearFlag(flagOnExpiry)
		case !node.isLeaf():
			// Promoted to interior by a split; its entry now lives in the
			// pushed-down leaf, which is tracked on this list in its own
			// right.
			node.clearFlag(flagOnExpiry)
		case now-node.timestamp.Load() >= cutoff:
			node.clearFlag(flagOnExpiry)
			s.markDeleted(node)
		default:
			s.expiryList.Push(&list.Node[*Node]{Value: node})
		}
	}
}

// Prune physically reclaims everything on the delete list.
//
// Behavior:
//   - Each listed node is unhooked from its parent's child list; a parent
//     left childless (and not the root) is recursively collapsed the same
//     way, child freed before parent
//   - A listed node whose delete flag has since been cleared (revived by
//     Add, or promoted to interior by a split) is skipped
//   - A node still on the expiry list is only unhooked and marked dead
//     here; its destructor and bookkeeping free are deferred to the next
//     expiry pass, which is what keeps a node on both lists from being
//     finalized twice
//   - Idempotent: a second Prune with nothing newly marked is a no-op
//
// Thread-safety:
//   - The only operation that holds the store's exclusive (writer) lock,
//     which is what makes the unlink safe without per-node spin
//   - Blocks until in-flight readers drain; safe to call from any
//     goroutine, and called periodically by the maintenance loop
//
// Performance:
//   - O(marked nodes), plus O(siblings) per unlink
func (s *Store) Prune() {
	snapshot := s.deleteList.Drain()
	if snapshot == nil {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	for n := snapshot; n != nil; n = n.Next {
		if !n.Value.hasFlag(flagOnDelete) {
			continue
		}
		s.pruneNode(n.Value)
	}
}

func (s *Store) pruneNode(node *Node) {
	if node.hasFlag(flagDead) {
		return
	}

	parent := node.parent
	if parent != nil {
		unlinkChild(parent, node)
	}
	node.setFlag(flagDead)

	if !node.hasFlag(flagOnExpiry) {
		s.finalizeNode(node)
	}

	if parent != nil && parent.level >= 0 && parent.childrenHead.Load() == nil {
		s.pruneNode(parent)
	}
}

// finalizeNode invokes node's destructor, if any, and releases its memtrack
// slot. The node must already be unhooked from the trie.
func (s *Store) finalizeNode(node *Node) {
	if node.destructor != nil {
		node.destructor(node.keyRef.key, node.value)
	}
	s.nodes.Free()
}

// unlinkChild removes target from parent's child list. Callers must hold
// the store's writer lock, which excludes every other mutator of the list.
func unlinkChild(parent, target *Node) {
	head := parent.childrenHead.Load()
	if head == target {
		parent.childrenHead.Store(target.next.Load())
		return
	}
	for prev := head; prev != nil; prev = prev.next.Load() {
		if next := prev.next.Load(); next == target {
			prev.next.Store(target.next.Load())
			return
		}
	}
}
