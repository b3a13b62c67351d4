package input

import (
	"sort"
	"sync"
	"testing"
)

// memSink records events without delivering them anywhere.
type memSink struct {
	mu     sync.Mutex
	ups    []string
	btnUps []string
}

func (m *memSink) MoveTo(x, y int)          {}
func (m *memSink) ButtonDown(button string) {}
func (m *memSink) ButtonUp(button string) {
	m.mu.Lock()
	m.btnUps = append(m.btnUps, button)
	m.mu.Unlock()
}
func (m *memSink) KeyDown(key string) {}
func (m *memSink) KeyUp(key string) {
	m.mu.Lock()
	m.ups = append(m.ups, key)
	m.mu.Unlock()
}
func (m *memSink) Tap(key string)   {}
func (m *memSink) Scroll(steps int) {}
func (m *memSink) Close() error     { return nil }

func TestTrackedBookkeeping(t *testing.T) {
	tr := NewTracked(&memSink{}, "left", "right")

	tr.KeyDown("left")
	tr.KeyDown("1")
	if !tr.Held("left") || !tr.Held("1") {
		t.Fatalf("keys not recorded as held")
	}

	tr.KeyUp("left")
	if tr.Held("left") {
		t.Fatalf("left still held after key up")
	}
	if !tr.Held("1") {
		t.Fatalf("attack key lost by pan key release")
	}
}

func TestReleaseAllCoversBothGroupsAndButtons(t *testing.T) {
	sink := &memSink{}
	tr := NewTracked(sink, "left", "right")

	tr.KeyDown("right")
	tr.KeyDown("w")
	tr.ButtonDown(ButtonLeft)
	tr.ReleaseAll()

	got := append([]string(nil), sink.ups...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "right" || got[1] != "w" {
		t.Fatalf("released keys = %v, want [right w]", got)
	}
	if len(sink.btnUps) != 1 || sink.btnUps[0] != ButtonLeft {
		t.Fatalf("released buttons = %v, want [left]", sink.btnUps)
	}
	if tr.Held("right") || tr.Held("w") {
		t.Fatalf("books not cleared by ReleaseAll")
	}
}

func TestReleaseAllIsIdempotent(t *testing.T) {
	sink := &memSink{}
	tr := NewTracked(sink, "left")

	tr.KeyDown("left")
	tr.ReleaseAll()
	tr.ReleaseAll()
	if len(sink.ups) != 1 {
		t.Fatalf("second ReleaseAll resent ups: %v", sink.ups)
	}
}

func TestConcurrentGroupsDoNotRace(t *testing.T) {
	tr := NewTracked(&memSink{}, "left", "right")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.KeyDown("left")
			tr.KeyUp("left")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.KeyDown("1")
			tr.KeyUp("1")
		}
	}()
	wg.Wait()

	if tr.Held("left") || tr.Held("1") {
		t.Fatalf("keys left held after balanced down/up pairs")
	}
}
