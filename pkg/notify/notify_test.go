package notify

import (
	"image"
	"sync"
	"testing"
	"time"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
}

func (m *memSink) Notify(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *memSink) count(t Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func TestRateLimitPerEventType(t *testing.T) {
	sink := &memSink{}
	n := New("s1", 5*time.Second, sink)
	defer n.Close()

	base := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		n.Emit(Event{Type: LockLost, At: base.Add(time.Duration(i) * time.Second)})
	}
	// 10s span with a 5s window passes events at 0s and 5s.
	waitFor(t, func() bool { return sink.count(LockLost) == 2 })
}

func TestRateLimitIsPerType(t *testing.T) {
	sink := &memSink{}
	n := New("s1", 5*time.Second, sink)
	defer n.Close()

	at := time.Unix(1000, 0)
	n.Emit(Event{Type: LockAcquired, At: at})
	n.Emit(Event{Type: AttackStarted, At: at})
	n.Emit(Event{Type: AttackCompleted, At: at})

	waitFor(t, func() bool {
		return sink.count(LockAcquired) == 1 &&
			sink.count(AttackStarted) == 1 &&
			sink.count(AttackCompleted) == 1
	})
}

func TestEmitStampsSessionAndTime(t *testing.T) {
	sink := &memSink{}
	n := New("session-42", 0, sink)

	n.Emit(Event{Type: Started, Box: BoxOf(image.Rect(10, 20, 70, 60))})
	n.Close()

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Session != "session-42" {
		t.Errorf("session = %q", ev.Session)
	}
	if ev.At.IsZero() {
		t.Errorf("emit did not stamp time")
	}
	if ev.Box == nil || ev.Box.W != 60 || ev.Box.H != 40 {
		t.Errorf("box = %+v", ev.Box)
	}
}

func TestEnableOnlyFiltersEventTypes(t *testing.T) {
	sink := &memSink{}
	n := New("s1", 0, sink)
	n.EnableOnly(LockAcquired, LockLost)

	at := time.Unix(1000, 0)
	n.Emit(Event{Type: Started, At: at})
	n.Emit(Event{Type: LockAcquired, At: at})
	n.Emit(Event{Type: AttackStarted, At: at})
	n.Emit(Event{Type: LockLost, At: at})
	n.Close()

	if got := len(sink.events); got != 2 {
		t.Fatalf("delivered = %d, want 2: %+v", got, sink.events)
	}
	if sink.count(LockAcquired) != 1 || sink.count(LockLost) != 1 {
		t.Errorf("wrong types delivered: %+v", sink.events)
	}
}

func TestAllTypesDeliveredWithoutEnableOnly(t *testing.T) {
	sink := &memSink{}
	n := New("s1", 0, sink)

	at := time.Unix(1000, 0)
	for _, typ := range []Type{Started, Stopped, LockAcquired, LockLost, AttackStarted, AttackCompleted} {
		n.Emit(Event{Type: typ, At: at})
	}
	n.Close()

	if got := len(sink.events); got != 6 {
		t.Fatalf("delivered = %d, want 6", got)
	}
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"started", "stopped", "lock_acquired", "lock_lost", "attack_started", "attack_completed"} {
		typ, err := ParseType(name)
		if err != nil {
			t.Errorf("ParseType(%q) error: %v", name, err)
			continue
		}
		if string(typ) != name {
			t.Errorf("ParseType(%q) = %q", name, typ)
		}
	}
	if _, err := ParseType("reboot"); err == nil {
		t.Error("ParseType accepted an unknown event name")
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	// No sink drain: the dispatcher is stalled by a slow sink while
	// the queue fills; emits past capacity must drop, not block.
	block := make(chan struct{})
	slow := slowSink{block: block}
	n := New("s1", 0, slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			n.Emit(Event{Type: Started, At: time.Unix(int64(i), 0)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked on a stalled sink")
	}
	close(block)
	n.Close()
}

type slowSink struct{ block chan struct{} }

func (s slowSink) Notify(ev Event) { <-s.block }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not reached within deadline")
	}
}
