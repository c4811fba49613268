package eventengine

import (
	"sync"
	"testing"
	"time"
)

func mustEngine(t *testing.T, workers int, maintenancePeriod time.Duration) *Engine {
	t.Helper()
	eng, err := Initialize(workers, maintenancePeriod)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(eng.Destroy)
	return eng
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	if _, err := Initialize(0, time.Second); err != ErrInvalidConfig {
		t.Fatalf("Initialize(0, 1s) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := Initialize(1, 0); err != ErrInvalidConfig {
		t.Fatalf("Initialize(1, 0) error = %v, want ErrInvalidConfig", err)
	}
}

func TestRegisterTypeRejectsDuplicate(t *testing.T) {
	eng := mustEngine(t, 1, time.Hour)
	if !eng.RegisterType(1, nil) {
		t.Fatal("first RegisterType failed")
	}
	if eng.RegisterType(1, nil) {
		t.Fatal("duplicate RegisterType unexpectedly succeeded")
	}
}

func TestAddListenerRejectsUnregisteredType(t *testing.T) {
	eng := mustEngine(t, 1, time.Hour)
	if _, ok := eng.AddListener(99, func(*Session, *Event, any) bool { return true }, nil, nil); ok {
		t.Fatal("AddListener on unregistered type unexpectedly succeeded")
	}
}

// TestEventFanout dispatches one event to three listeners, the second of
// which returns false; the session callback observes ListenerResult in
// head-prepend order, then EventComplete, then SessionDestroy.
func TestEventFanout(t *testing.T) {
	eng := mustEngine(t, 1, time.Hour)
	const typ EventTypeId = 1
	eng.RegisterType(typ, nil)

	var mu sync.Mutex

	eng.AddListener(typ, func(*Session, *Event, any) bool { return true }, nil, "L1")
	eng.AddListener(typ, func(*Session, *Event, any) bool { return false }, nil, "L2")
	eng.AddListener(typ, func(*Session, *Event, any) bool { return true }, nil, "L3")

	done := make(chan struct{})
	var results []SessionResult
	_, ok := eng.StartSession(typ, "payload", nil, func(_ *Session, r SessionResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
		if r.Reason == SessionDestroy {
			close(done)
		}
	}, nil)
	if !ok {
		t.Fatal("StartSession failed")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session never completed")
	}

	mu.Lock()
	defer mu.Unlock()

	var vals []bool
	var sawComplete, sawDestroy bool
	for _, r := range results {
		switch r.Reason {
		case ListenerResult:
			if sawComplete {
				t.Fatal("ListenerResult observed after EventComplete")
			}
			vals = append(vals, r.Val)
		case EventComplete:
			sawComplete = true
			if r.Depth != 0 {
				t.Fatalf("EventComplete depth = %d, want 0", r.Depth)
			}
		case SessionDestroy:
			sawDestroy = true
		}
	}

	want := []bool{true, false, true}
	if len(vals) != len(want) {
		t.Fatalf("got %d ListenerResults, want %d", len(vals), len(want))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("ListenerResult[%d] = %v, want %v", i, vals[i], want[i])
		}
	}
	if !sawComplete || !sawDestroy {
		t.Fatalf("missing EventComplete (%v) or SessionDestroy (%v)", sawComplete, sawDestroy)
	}
}

// TestNestedGenerationHalt appends two children during the root's
// dispatch, then halts on the root's EventComplete: the children must not
// dispatch, but their destroy callbacks must still fire with
// dispatched=false.
func TestNestedGenerationHalt(t *testing.T) {
	eng := mustEngine(t, 1, time.Hour)
	const typ EventTypeId = 1
	eng.RegisterType(typ, nil)

	var mu sync.Mutex
	var destroyedDepths []int
	var destroyedDispatched []bool
	dtor := func(e *Event, dispatched bool, _ any) {
		mu.Lock()
		defer mu.Unlock()
		destroyedDepths = append(destroyedDepths, e.Depth())
		destroyedDispatched = append(destroyedDispatched, dispatched)
	}

	eng.AddListener(typ, func(session *Session, e *Event, _ any) bool {
		if e.Depth() == 0 {
			eng.SessionAppend(session, typ, "child1", dtor, nil)
			eng.SessionAppend(session, typ, "child2", dtor, nil)
		}
		return true
	}, nil, nil)

	done := make(chan struct{})
	_, ok := eng.StartSession(typ, "root", dtor, func(_ *Session, r SessionResult) {
		if r.Reason == EventComplete && r.Depth == 0 {
			*r.Halt = true
		}
		if r.Reason == SessionDestroy {
			close(done)
		}
	}, nil)
	if !ok {
		t.Fatal("StartSession failed")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(destroyedDepths) != 3 {
		t.Fatalf("got %d destroyed events, want 3 (root + 2 children)", len(destroyedDepths))
	}
	for i, depth := range destroyedDepths {
		if depth == 0 {
			if !destroyedDispatched[i] {
				t.Fatal("root event destroyed with dispatched=false")
			}
			continue
		}
		if destroyedDispatched[i] {
			t.Fatalf("child event at index %d destroyed with dispatched=true, want false", i)
		}
	}
}

// TestListenerRemovalDuringDispatch removes the second listener from
// inside the first's callback: firing for the in-flight event is racy and
// allowed, firing for any later event is not, and the destroy callback
// must run exactly once via the maintenance sweep.
func TestListenerRemovalDuringDispatch(t *testing.T) {
	eng := mustEngine(t, 1, 30*time.Millisecond)
	const typ EventTypeId = 1
	eng.RegisterType(typ, nil)

	var l2Calls int
	var mu sync.Mutex
	var l2 *Listener

	destroyed := make(chan struct{}, 1)

	eng.AddListener(typ, func(session *Session, _ *Event, _ any) bool {
		eng.RemoveListener(l2)
		return true
	}, nil, nil)
	l2, _ = eng.AddListener(typ, func(*Session, *Event, any) bool {
		mu.Lock()
		l2Calls++
		mu.Unlock()
		return true
	}, func(any) {
		select {
		case destroyed <- struct{}{}:
		default:
		}
	}, nil)

	done := make(chan struct{})
	eng.StartSession(typ, nil, nil, func(_ *Session, r SessionResult) {
		if r.Reason == SessionDestroy {
			close(done)
		}
	}, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first session never completed")
	}

	// L2's callback must never fire again for a subsequent event.
	done2 := make(chan struct{})
	eng.StartSession(typ, nil, nil, func(_ *Session, r SessionResult) {
		if r.Reason == SessionDestroy {
			close(done2)
		}
	}, nil)
	select {
	case <-done2:
	case <-time.After(2 * time.Second):
		t.Fatal("second session never completed")
	}

	mu.Lock()
	calls := l2Calls
	mu.Unlock()
	if calls > 1 {
		t.Fatalf("l2 fired %d times, want at most 1 (racy for the removal's own event, never after)", calls)
	}

	select {
	case <-destroyed:
	case <-time.After(2 * time.Second):
		t.Fatal("l2 destroy callback never fired after maintenance sweep")
	}
}

func TestCancelSessionOnlySucceedsWhileQueued(t *testing.T) {
	eng := mustEngine(t, 1, time.Hour)
	const typ EventTypeId = 1
	eng.RegisterType(typ, nil)

	// Block the single worker so the next session stays queued.
	blocked := make(chan struct{})
	release := make(chan struct{})
	eng.AddListener(typ, func(*Session, *Event, any) bool {
		close(blocked)
		<-release
		return true
	}, nil, nil)

	eng.StartSession(typ, nil, nil, nil, nil) // occupies the worker
	<-blocked

	session, ok := eng.StartSession(typ, nil, nil, nil, nil)
	if !ok {
		t.Fatal("second StartSession failed")
	}
	if !eng.CancelSession(session) {
		t.Fatal("CancelSession on a still-queued session failed")
	}
	if eng.CancelSession(session) {
		t.Fatal("CancelSession succeeded twice")
	}

	close(release)
}
