package eventengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dreamware/substrate/internal/list"
	"github.com/dreamware/substrate/internal/logging"
	"github.com/dreamware/substrate/internal/rwlock"
	"github.com/dreamware/substrate/internal/slab"
	"github.com/dreamware/substrate/internal/threadpool"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidConfig is returned by Initialize when N_workers or the
// maintenance period is out of range.
var ErrInvalidConfig = errors.New("eventengine: invalid configuration")

// Engine is the multi-worker event-dispatch context: a registry of event
// types and their listeners, a FIFO of sessions contended over by N worker
// goroutines, and one maintenance goroutine that physically unlinks
// logically-removed listeners.
//
// All operations guarantee:
//   - Thread-safety for any mix of concurrent callers
//   - A listener whose callback was cleared at fetch time is never invoked
//   - Within a session, generation d+1 dispatches strictly after all of
//     generation d completes; across sessions, no ordering is promised
//   - Destroy callbacks run at most once per listener and per event
//
// Implementation notes:
//   - Dispatch traverses listener lists under a shared lock; only the
//     maintenance sweep takes the exclusive lock
//   - Listener registration and logical removal are single atomic
//     operations, so they are safe from inside a dispatching callback
//
// The zero value is not usable; construct one with Initialize.
type Engine struct {
	defsMu       sync.RWMutex
	defs         map[EventTypeId]*EventDef
	listenerLock *rwlock.RWLock

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     []*Session
	stopped   bool

	workers     *errgroup.Group
	pool        *threadpool.Pool
	maintenance *threadpool.Handle
	groupPool   *slab.Pool[EventGroup]

	maintenancePeriod time.Duration
	log               logging.Logger
}

func newGroupPool() *slab.Pool[EventGroup] {
	return slab.New(
		func() *EventGroup { return &EventGroup{} },
		func(g *EventGroup) {
			g.session = nil
			g.depth = 0
			g.events = g.events[:0]
		},
	)
}

// Initialize starts a new engine.
//
// Behavior:
//   - Starts nWorkers dispatch goroutines contending on the session queue
//   - Starts one maintenance goroutine that sweeps logically-removed
//     listeners every maintenancePeriod
//
// Parameters:
//   - nWorkers: dispatch goroutine count (must be >= 1)
//   - maintenancePeriod: listener sweep interval (must be > 0)
//
// Returns:
//   - A running engine on success
//   - ErrInvalidConfig if either parameter is out of range
func Initialize(nWorkers int, maintenancePeriod time.Duration) (*Engine, error) {
	if nWorkers < 1 || maintenancePeriod <= 0 {
		return nil, ErrInvalidConfig
	}

	eng := &Engine{
		defs:              make(map[EventTypeId]*EventDef),
		listenerLock:      rwlock.New(),
		pool:              threadpool.New(context.Background()),
		groupPool:         newGroupPool(),
		maintenancePeriod: maintenancePeriod,
		log:               logging.Default().Named("eventengine"),
	}
	eng.queueCond = sync.NewCond(&eng.queueMu)

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < nWorkers; i++ {
		g.Go(func() error {
			eng.workerLoop()
			return nil
		})
	}
	eng.workers = g
	eng.maintenance = eng.pool.Spawn(0, eng.maintenanceLoop)

	return eng, nil
}

// RegisterType registers eid with formatter.
//
// Behavior:
//   - A type must be registered before listeners can be added or sessions
//     started for it
//   - Registration is permanent for the engine's lifetime
//
// Thread-safety:
//   - Safe for concurrent calls; duplicates lose deterministically
//
// Parameters:
//   - eid: the type's identifier, typically strid.Hash of its name
//   - formatter: renders events of this type for diagnostics, may be nil
//
// Returns:
//   - true if newly registered
//   - false if eid is already known (the existing registration is kept)
func (eng *Engine) RegisterType(eid EventTypeId, formatter Formatter) bool {
	eng.defsMu.Lock()
	defer eng.defsMu.Unlock()

	if _, exists := eng.defs[eid]; exists {
		return false
	}
	eng.defs[eid] = &EventDef{id: eid, formatter: formatter}
	return true
}

func (eng *Engine) lookupDef(eid EventTypeId) (*EventDef, bool) {
	eng.defsMu.RLock()
	defer eng.defsMu.RUnlock()
	def, ok := eng.defs[eid]
	return def, ok
}

// AddListener registers cb for eid.
//
// Behavior:
//   - The listener is prepended, so the most recently added listener is
//     invoked first at dispatch
//   - destroyCB runs at most once, when the listener is physically
//     reclaimed by a maintenance sweep or at engine Destroy
//
// Thread-safety:
//   - Safe for concurrent calls, including from inside a dispatching
//     listener's own callback
//
// Parameters:
//   - eid: a registered type
//   - cb: invoked per dispatched event of this type (must not be nil)
//   - destroyCB: may be nil
//   - user: opaque value passed back to cb, may be nil
//
// Returns:
//   - The listener's handle (for RemoveListener) and true on success
//   - nil and false if eid is not registered or cb is nil
func (eng *Engine) AddListener(eid EventTypeId, cb ListenerFunc, destroyCB DestroyFunc, user any) (*Listener, bool) {
	if cb == nil {
		return nil, false
	}
	def, ok := eng.lookupDef(eid)
	if !ok {
		return nil, false
	}

	l := &Listener{destroy: destroyCB, user: user, eid: eid}
	l.callback.Store(&cb)

	// Prepend is a single atomic CAS, so no lock is needed: a prepend
	// racing the sweep's drain-and-rebuild lands on whichever head the CAS
	// observes and survives either way. Taking the reader lock here would
	// deadlock a listener that registers another listener from inside its
	// own callback, which already runs under that lock.
	def.listeners.Push(&list.Node[*Listener]{Value: l})

	return l, true
}

// RemoveListener logically removes l.
//
// Behavior:
//   - The callback is cleared, so l will not fire for any subsequent
//     event; for an event already mid-dispatch the outcome is racy
//   - l remains linked until the next maintenance pass physically unlinks
//     it and runs its destroy callback
//
// Thread-safety:
//   - A single atomic store, safe from any goroutine including inside a
//     dispatching listener's own callback; if it races the sweep's
//     liveness check the listener simply survives until the following
//     pass
func (eng *Engine) RemoveListener(l *Listener) {
	l.callback.Store(nil)
}

// StartSession enqueues a new session containing one generation-0 group
// with one event of type eid.
//
// Behavior:
//   - The session, group, and root event are fully built before the
//     session becomes visible to any worker
//   - sessionCB, when non-nil, receives every ListenerResult,
//     EventComplete, and SessionDestroy report for the session's lifetime
//
// Thread-safety:
//   - Safe for concurrent calls; which worker picks the session up, and
//     its ordering relative to other sessions, is unspecified
//
// Parameters:
//   - eid: a registered type
//   - data: the root event's payload, may be nil
//   - eventDestroyCB: runs once for the root event, may be nil
//   - sessionCB: may be nil
//   - user: opaque value stored on the session, may be nil
//
// Returns:
//   - The session's handle (for CancelSession/SessionAppend) and true
//   - nil and false if eid is not registered
func (eng *Engine) StartSession(eid EventTypeId, data any, eventDestroyCB EventDestroyFunc, sessionCB SessionFunc, user any) (*Session, bool) {
	def, ok := eng.lookupDef(eid)
	if !ok {
		return nil, false
	}

	session := &Session{callback: sessionCB, user: user}
	group0 := eng.groupPool.Get()
	group0.session = session
	group0.depth = 0
	event0 := &Event{def: def, group: group0, data: data, destroyCB: eventDestroyCB, user: user}
	group0.events = append(group0.events, event0)
	session.groups = append(session.groups, group0)

	eng.enqueueSession(session)
	return session, true
}

// SessionAppend appends a child event of type eid to session's current
// back group.
//
// Behavior:
//   - The event joins the back group, so it is dispatched in the next
//     generation, never the one currently processing
//   - Intended to be called from a listener while its event dispatches;
//     appending to a session that has already finished is undefined
//
// Parameters:
//   - session: the session the dispatching event belongs to
//   - eid: a registered type
//   - data, eventDestroyCB, user: as for StartSession's root event
//
// Returns:
//   - true on append
//   - false if eid is not registered
func (eng *Engine) SessionAppend(session *Session, eid EventTypeId, data any, eventDestroyCB EventDestroyFunc, user any) bool {
	def, ok := eng.lookupDef(eid)
	if !ok {
		return false
	}
	session.appendToBack(&Event{def: def, data: data, destroyCB: eventDestroyCB, user: user})
	return true
}

// CancelSession unlinks session from the dispatch queue if it has not yet
// been picked up by a worker.
//
// Behavior:
//   - There is no mid-dispatch cancellation: once a worker holds the
//     session, cancellation fails and the session runs to completion
//   - A cancelled session's events are destroyed with dispatched=false,
//     then its callback receives SessionDestroy
//
// Thread-safety:
//   - Safe for concurrent calls; at most one caller wins the unlink
//
// Returns:
//   - true iff the session was still queued and this call removed it
func (eng *Engine) CancelSession(session *Session) bool {
	eng.queueMu.Lock()
	idx := -1
	for i, s := range eng.queue {
		if s == session {
			idx = i
			break
		}
	}
	if idx == -1 {
		eng.queueMu.Unlock()
		return false
	}
	eng.queue = append(eng.queue[:idx], eng.queue[idx+1:]...)
	eng.queueMu.Unlock()

	eng.destroySession(session)
	return true
}

func (eng *Engine) enqueueSession(s *Session) {
	eng.queueMu.Lock()
	eng.queue = append(eng.queue, s)
	eng.queueMu.Unlock()
	eng.queueCond.Signal()
}

func (eng *Engine) workerLoop() {
	for {
		eng.queueMu.Lock()
		for len(eng.queue) == 0 && !eng.stopped {
			eng.queueCond.Wait()
		}
		if eng.stopped {
			eng.queueMu.Unlock()
			return
		}
		session := eng.queue[0]
		eng.queue = eng.queue[1:]
		eng.queueMu.Unlock()

		eng.processSession(session)
	}
}

// destroySession drains every event still queued in session without
// dispatching it, invoking each one's destroy callback with
// dispatched=false, then reports SessionDestroy.
func (eng *Engine) destroySession(session *Session) {
	for _, e := range session.drainGroups() {
		if e.destroyCB != nil {
			e.destroyCB(e, false, e.user)
		}
	}
	if session.callback != nil {
		session.callback(session, SessionResult{Reason: SessionDestroy})
	}
}

// Destroy shuts the engine down.
//
// Behavior:
//   - Stops every worker and the maintenance task, waiting for each; a
//     worker mid-session finishes that session first
//   - Frees every session still queued: its undispatched events get their
//     destroy callbacks with dispatched=false
//   - Runs one final listener sweep, so pending logical removals still
//     see their destroy callbacks
//   - Calling any other method after Destroy returns is undefined
//
// Thread-safety:
//   - Synchronous; must be called exactly once, by one goroutine
func (eng *Engine) Destroy() {
	eng.maintenance.Release()
	eng.maintenance.Wait()
	eng.pool.Shutdown()

	eng.queueMu.Lock()
	eng.stopped = true
	eng.queueMu.Unlock()
	eng.queueCond.Broadcast()
	eng.workers.Wait()

	eng.queueMu.Lock()
	remaining := eng.queue
	eng.queue = nil
	eng.queueMu.Unlock()
	for _, s := range remaining {
		eng.destroySession(s)
	}

	eng.sweepListeners()
}
