package replay

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordedKey struct {
	at   time.Time
	op   string
	name string
}

type fakeKeys struct {
	mu   sync.Mutex
	keys []recordedKey
}

func (f *fakeKeys) add(op, name string) {
	f.mu.Lock()
	f.keys = append(f.keys, recordedKey{at: time.Now(), op: op, name: name})
	f.mu.Unlock()
}

func (f *fakeKeys) KeyDown(key string) { f.add("down", key) }
func (f *fakeKeys) KeyUp(key string)   { f.add("up", key) }
func (f *fakeKeys) Tap(key string)     { f.add("tap", key) }

func (f *fakeKeys) snapshot() []recordedKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedKey(nil), f.keys...)
}

func testSequence() Sequence {
	return Sequence{
		{OffsetMs: 0, Kind: KeyPress, Key: "w"},
		{OffsetMs: 60, Kind: KeyRelease, Key: "w"},
		{OffsetMs: 120, Kind: KeyPress, Key: "s"},
		{OffsetMs: 180, Kind: KeyRelease, Key: "s"},
		{OffsetMs: 200, Kind: EndMarker},
	}
}

func TestPlayerReplaysTimeline(t *testing.T) {
	keys := &fakeKeys{}
	p := NewPlayer(testSequence(), keys, DefaultPlayerConfig())

	begin := time.Now()
	if err := p.Start(false); err != nil {
		t.Fatalf("start: %v", err)
	}
	for p.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	got := keys.snapshot()
	if len(got) != 4 {
		t.Fatalf("events = %d, want 4: %+v", len(got), got)
	}
	want := []struct{ op, name string }{
		{"down", "w"}, {"up", "w"}, {"down", "s"}, {"up", "s"},
	}
	for i, w := range want {
		if got[i].op != w.op || got[i].name != w.name {
			t.Errorf("event %d = %s:%s, want %s:%s", i, got[i].op, got[i].name, w.op, w.name)
		}
	}
	// The s press is 120ms into the timeline; generous bounds absorb
	// scheduler jitter.
	if d := got[2].at.Sub(begin); d < 100*time.Millisecond || d > 400*time.Millisecond {
		t.Errorf("s pressed %v after start, want ~120ms", d)
	}
}

func TestPlayerStopReleasesHeldKeys(t *testing.T) {
	keys := &fakeKeys{}
	seq := Sequence{
		{OffsetMs: 0, Kind: KeyPress, Key: "w"},
		{OffsetMs: 5000, Kind: KeyRelease, Key: "w"},
		{OffsetMs: 5000, Kind: EndMarker},
	}
	p := NewPlayer(seq, keys, DefaultPlayerConfig())

	if err := p.Start(false); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	got := keys.snapshot()
	if len(got) != 2 || got[0].op != "down" || got[1].op != "up" || got[1].name != "w" {
		t.Fatalf("events = %+v, want held w released on stop", got)
	}
	if p.IsPlaying() {
		t.Fatalf("still playing after stop")
	}
}

func TestPlayerLoopRunsCooldownMacro(t *testing.T) {
	keys := &fakeKeys{}
	cfg := PlayerConfig{
		CommitKey:      "1",
		InteractKey:    "e",
		InteractPeriod: 20 * time.Millisecond,
		MacroCooldown:  100 * time.Millisecond,
		MacroPause:     20 * time.Millisecond,
	}
	seq := Sequence{
		{OffsetMs: 0, Kind: KeyPress, Key: "w"},
		{OffsetMs: 10, Kind: KeyRelease, Key: "w"},
		{OffsetMs: 20, Kind: EndMarker},
	}
	p := NewPlayer(seq, keys, cfg)

	if err := p.Start(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	p.Stop()

	var commits, interacts, downs int
	for _, k := range keys.snapshot() {
		switch {
		case k.op == "tap" && k.name == "1":
			commits++
		case k.op == "tap" && k.name == "e":
			interacts++
		case k.op == "down" && k.name == "w":
			downs++
		}
	}
	if commits < 1 {
		t.Fatalf("commit key never tapped in loop macro")
	}
	if interacts < 3 {
		t.Fatalf("interact taps = %d, want several during macro", interacts)
	}
	if downs < 2 {
		t.Fatalf("sequence played %d times, want looped replay", downs)
	}
}

func TestStartWithEmptySequence(t *testing.T) {
	p := NewPlayer(nil, &fakeKeys{}, DefaultPlayerConfig())
	if err := p.Start(false); err == nil {
		t.Fatalf("expected ErrNoSequence")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequences.json")
	st := NewStore(path)

	if _, err := st.Load("attack"); err == nil {
		t.Fatalf("expected error loading from empty store")
	}

	if err := st.Save("attack", testSequence()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.Load("attack")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 5 || got[4].Kind != EndMarker {
		t.Fatalf("loaded sequence = %+v", got)
	}

	names, err := st.Names()
	if err != nil || len(names) != 1 || names[0] != "attack" {
		t.Fatalf("names = %v, %v", names, err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store file missing: %v", err)
	}
}
