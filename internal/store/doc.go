// Package store implements a fixed-depth, bit-sliced radix trie mapping a
// fixed-size byte key to an opaque value, with concurrent insertion, logical
// deletion, lifespan-based expiry, and a background maintenance pass that
// physically reclaims deleted and expired nodes.
//
// # Overview
//
// A Store is created with three parameters: K, the key length in bytes; B,
// the number of key bits consumed per trie level (1-8); and L, the lifespan
// after which an inserted entry becomes eligible for automatic deletion.
// Keys are sliced from the most significant bit of byte 0, B bits at a
// time, to choose a child at each trie level.
//
// # Concurrency
//
// Add, Find, and Delete all take the store's shared (reader) lock and hold
// it for the whole call; child-list mutation within a single node is
// additionally protected by that node's own spinlock, held only long enough
// to scan and splice the sibling list. Prune takes the store's exclusive
// (writer) lock and is the only operation that physically unlinks or frees
// nodes.
//
// # Maintenance
//
// Every inserted leaf is pushed onto an expiry list at creation and, when
// explicitly deleted, onto a delete list. Both lists are lock-free
// singly-linked stacks (internal/list) so producers never block each other.
// A background goroutine wakes once per lifespan interval, walks a detached
// snapshot of the expiry list moving expired leaves onto the delete list,
// and then calls Prune to physically reclaim everything on the delete
// list, cascading the collapse of any interior node left childless.
package store
