package eventengine

import (
	"sync"
	"sync/atomic"

	"github.com/dreamware/substrate/internal/list"
)

// EventTypeId identifies a registered event type. It is a stable hash of a
// human-readable type name, produced by internal/strid.
type EventTypeId uint32

// MaxFormattedEventBytes bounds the textual rendering a Formatter produces.
const MaxFormattedEventBytes = 4096

// Formatter renders a textual representation of an event, used for
// diagnostics. Output longer than MaxFormattedEventBytes is truncated by
// FormatEvent.
type Formatter func(e *Event) string

// ListenerFunc is invoked once per dispatched event for each live listener.
// Its boolean result is reported to the session callback as a
// ListenerResult but never halts the session by itself.
type ListenerFunc func(session *Session, event *Event, user any) bool

// DestroyFunc runs at most once per listener, when it is physically
// reclaimed during a maintenance pass.
type DestroyFunc func(user any)

// EventDestroyFunc runs at most once per event, whether or not the event
// was actually dispatched (see EventComplete/SessionDestroy semantics).
type EventDestroyFunc func(e *Event, dispatched bool, user any)

// SessionReason enumerates why a session callback is being invoked.
type SessionReason int

const (
	// ListenerResult reports one listener's return value for an event.
	ListenerResult SessionReason = iota
	// EventComplete reports that every listener has had a chance to run
	// for an event; the callback may set Halt to true to stop the
	// session at once: no further event of this or any later generation
	// is dispatched.
	EventComplete
	// SessionDestroy reports that the session has finished (normally, by
	// halt, or by cancellation) and is about to be freed.
	SessionDestroy
)

// SessionResult is delivered to a session's callback.
//
// Field validity by Reason:
//   - ListenerResult: Event and Val are set
//   - EventComplete: Event, Depth, and Halt are set; writing *Halt = true
//     before returning stops the session immediately, and every event not
//     yet dispatched is destroyed with dispatched=false
//   - SessionDestroy: no other field is meaningful
type SessionResult struct {
	Event  *Event
	Halt   *bool // writable only when Reason == EventComplete
	Reason SessionReason
	Val    bool // meaningful only when Reason == ListenerResult
	Depth  int  // meaningful only when Reason == EventComplete
}

// SessionFunc receives every callback report for the lifetime of a session.
type SessionFunc func(session *Session, result SessionResult)

// EventDef is a type's registration record: its formatter and the
// atomically-prepended list of listeners registered for it.
type EventDef struct {
	formatter Formatter
	listeners list.Stack[*Listener]
	id        EventTypeId
}

// Listener holds one registered callback. A nil callback means the
// listener has been logically removed; physical unlinking happens in the
// engine's maintenance pass, under the listener-list writer lock.
type Listener struct {
	callback atomic.Pointer[ListenerFunc]
	destroy  DestroyFunc
	user     any
	eid      EventTypeId
}

// Event carries one unit of dispatch within a session.
type Event struct {
	def        *EventDef
	group      *EventGroup
	data       any
	destroyCB  EventDestroyFunc
	user       any
	dispatched atomic.Bool
}

// EventGroup is a FIFO of events belonging to one generation of a session.
// depth 0 is the session's originating event; depth d+1 events are the
// children appended while generation d was dispatching.
type EventGroup struct {
	session *Session
	events  []*Event
	depth   int
}

// Session is a FIFO of event groups sharing one callback and user value.
// It lives from StartSession until every group is drained or the session
// callback sets Halt.
type Session struct {
	mu       sync.Mutex
	groups   []*EventGroup
	callback SessionFunc
	user     any
}

// backGroupLocked returns the session's current back group, creating none —
// callers must have already pushed at least one group (StartSession
// always does). Must be called with mu held.
func (s *Session) backGroupLocked() *EventGroup {
	return s.groups[len(s.groups)-1]
}

func (s *Session) popFront() *EventGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.groups) == 0 {
		return nil
	}
	g := s.groups[0]
	s.groups = s.groups[1:]
	return g
}

func (s *Session) pushBack(g *EventGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, g)
}

// appendToBack appends e to the session's current back group, so it is
// dispatched in the next generation, not whichever one is currently being
// processed.
func (s *Session) appendToBack(e *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	back := s.backGroupLocked()
	e.group = back
	back.events = append(back.events, e)
}

// drainGroups empties every remaining group, returning their events in
// order, for cancellation/halt paths that never get to dispatch them.
func (s *Session) drainGroups() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*Event
	for _, g := range s.groups {
		all = append(all, g.events...)
	}
	s.groups = nil
	return all
}

// FormatEvent renders e with its type's formatter, truncated to
// MaxFormattedEventBytes. It returns "" if the type has no formatter.
func FormatEvent(e *Event) string {
	if e.def.formatter == nil {
		return ""
	}
	s := e.def.formatter(e)
	if len(s) > MaxFormattedEventBytes {
		return s[:MaxFormattedEventBytes]
	}
	return s
}

// Data returns the user payload an event was created with.
func (e *Event) Data() any { return e.data }

// Dispatched reports whether the event has already been offered to its
// listeners.
func (e *Event) Dispatched() bool { return e.dispatched.Load() }

// Depth returns the generation depth of the group this event belongs to.
func (e *Event) Depth() int { return e.group.depth }
