package eventengine

// processSession runs session to completion: it pops each generation's
// group in turn, pushing the next generation's group before dispatching
// any event in the current one (so a listener's SessionAppend during
// dispatch lands in the group that is already "next"), and stops early if
// a session callback requests a halt.
func (eng *Engine) processSession(session *Session) {
	for {
		group := session.popFront()
		if group == nil {
			break
		}
		if len(group.events) == 0 {
			continue
		}

		next := eng.groupPool.Get()
		next.session = session
		next.depth = group.depth + 1
		session.pushBack(next)

		halted := false
		for i, e := range group.events {
			cont := eng.dispatch(session, e)
			e.dispatched.Store(true)
			if e.destroyCB != nil {
				e.destroyCB(e, true, e.user)
			}
			if !cont {
				halted = true
				// A halt stops all generations immediately: the rest of
				// this generation's siblings were never offered to
				// listeners.
				for _, skipped := range group.events[i+1:] {
					if skipped.destroyCB != nil {
						skipped.destroyCB(skipped, false, skipped.user)
					}
				}
				break
			}
		}
		eng.groupPool.Put(group)
		if halted {
			eng.destroySession(session)
			return
		}
	}

	if session.callback != nil {
		session.callback(session, SessionResult{Reason: SessionDestroy})
	}
}

// dispatch fans e out to every listener registered for its type, in
// head-prepend (most-recently-added-first) order, reporting each result to
// the session callback. It returns false iff the session callback set Halt
// on the trailing EventComplete report.
func (eng *Engine) dispatch(session *Session, e *Event) bool {
	eng.listenerLock.RLock()
	for node := e.def.listeners.Peek(); node != nil; node = node.Next {
		l := node.Value
		cb := l.callback.Load()
		if cb == nil {
			continue // logically removed
		}
		val := (*cb)(session, e, l.user)
		if session.callback != nil {
			session.callback(session, SessionResult{Reason: ListenerResult, Event: e, Val: val})
		}
	}
	eng.listenerLock.RUnlock()

	if session.callback == nil {
		return true
	}
	halt := false
	session.callback(session, SessionResult{Reason: EventComplete, Event: e, Depth: e.group.depth, Halt: &halt})
	return !halt
}
