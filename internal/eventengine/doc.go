// Package eventengine is a multi-worker dispatcher for event "sessions". A
// session starts from a root event, is enqueued, and is picked up by one of
// N worker goroutines. Each event is fanned out to its registered
// listeners; a listener may append child events that form the session's
// next "generation" (EventGroup). A session callback observes listener
// results and generation completions and may halt further generations.
//
// Listener add/remove is safe against in-flight dispatch: removal is
// logical (the listener's callback is atomically cleared), and physical
// unlinking happens in a maintenance pass that holds the listener-list
// writer lock — the same reader/writer split the radix store uses between
// its mutators and its pruning pass.
package eventengine
