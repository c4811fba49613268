package eventengine

import (
	"context"
	"time"

	"github.com/dreamware/substrate/internal/list"
)

// maintenanceLoop wakes once per maintenancePeriod and physically unlinks
// every listener whose callback has been cleared since the last pass.
func (eng *Engine) maintenanceLoop(ctx context.Context) {
	eng.log.Debug("listener maintenance loop starting")
	ticker := time.NewTicker(eng.maintenancePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			eng.log.Debug("listener maintenance loop stopping")
			return
		case <-ticker.C:
			eng.sweepListeners()
		}
	}
}

// sweepListeners holds the listener-list writer lock for the whole walk,
// which is what makes it safe to rebuild each EventDef's chain without any
// per-listener synchronization: dispatch readers are excluded for the
// duration, so none can observe a chain mid-rebuild. Destroy callbacks for
// unlinked listeners run only after the writer lock is released.
func (eng *Engine) sweepListeners() {
	eng.defsMu.RLock()
	defs := make([]*EventDef, 0, len(eng.defs))
	for _, def := range eng.defs {
		defs = append(defs, def)
	}
	eng.defsMu.RUnlock()

	var removed []*Listener

	eng.listenerLock.Lock()
	for _, def := range defs {
		removed = append(removed, rebuildListenerChain(def)...)
	}
	eng.listenerLock.Unlock()

	for _, l := range removed {
		if l.destroy != nil {
			l.destroy(l.user)
		}
	}
}

// rebuildListenerChain drains def's listener chain and re-pushes every
// still-live listener in its original relative order, returning the
// logically-removed ones that were dropped. Caller must hold the
// listener-list writer lock, which excludes dispatch for the duration; an
// AddListener racing the rebuild is still safe, since both sides prepend
// with a CAS — the new listener just lands behind the re-pushed survivors.
func rebuildListenerChain(def *EventDef) []*Listener {
	head := def.listeners.Drain()

	var live, dead []*Listener
	for n := head; n != nil; n = n.Next {
		if n.Value.callback.Load() != nil {
			live = append(live, n.Value)
		} else {
			dead = append(dead, n.Value)
		}
	}

	// Push in reverse so the final head-to-tail order matches the
	// original relative order of the surviving listeners.
	for i := len(live) - 1; i >= 0; i-- {
		def.listeners.Push(&list.Node[*Listener]{Value: live[i]})
	}

	return dead
}
