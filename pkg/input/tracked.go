package input

import (
	"sync"
)

// group is one coarse lock over a set of held keys. The pan keys and
// the attack keys are touched from different goroutines, so each gets
// its own group and neither blocks the other.
type group struct {
	mu   sync.Mutex
	held map[string]bool
}

func newGroup() *group { return &group{held: make(map[string]bool)} }

func (g *group) set(key string, down bool) {
	g.mu.Lock()
	if down {
		g.held[key] = true
	} else {
		delete(g.held, key)
	}
	g.mu.Unlock()
}

func (g *group) drain() []string {
	g.mu.Lock()
	keys := make([]string, 0, len(g.held))
	for k := range g.held {
		keys = append(keys, k)
	}
	g.held = make(map[string]bool)
	g.mu.Unlock()
	return keys
}

// Tracked wraps a Sink with optimistic held-state bookkeeping so that
// stop and cleanup paths can release everything that might be down.
// The underlying sink may silently fail; ReleaseAll sends unfiltered
// key-ups for whatever the books say.
type Tracked struct {
	sink Sink

	panKeys map[string]bool
	pan     *group // directional holds, tick loop only
	action  *group // everything else, including playback keys

	btnMu sync.Mutex
	btns  map[string]bool
}

// NewTracked wraps sink. panKeys names the directional keys that get
// their own lock group.
func NewTracked(sink Sink, panKeys ...string) *Tracked {
	pk := make(map[string]bool, len(panKeys))
	for _, k := range panKeys {
		pk[k] = true
	}
	return &Tracked{
		sink:    sink,
		panKeys: pk,
		pan:     newGroup(),
		action:  newGroup(),
		btns:    make(map[string]bool),
	}
}

func (t *Tracked) groupFor(key string) *group {
	if t.panKeys[key] {
		return t.pan
	}
	return t.action
}

func (t *Tracked) MoveTo(x, y int) { t.sink.MoveTo(x, y) }

func (t *Tracked) ButtonDown(button string) {
	t.btnMu.Lock()
	t.btns[button] = true
	t.btnMu.Unlock()
	t.sink.ButtonDown(button)
}

func (t *Tracked) ButtonUp(button string) {
	t.btnMu.Lock()
	delete(t.btns, button)
	t.btnMu.Unlock()
	t.sink.ButtonUp(button)
}

func (t *Tracked) KeyDown(key string) {
	t.groupFor(key).set(key, true)
	t.sink.KeyDown(key)
}

func (t *Tracked) KeyUp(key string) {
	t.groupFor(key).set(key, false)
	t.sink.KeyUp(key)
}

func (t *Tracked) Tap(key string) { t.sink.Tap(key) }

func (t *Tracked) Scroll(steps int) { t.sink.Scroll(steps) }

func (t *Tracked) Close() error { return t.sink.Close() }

// Held reports whether the books say key is down.
func (t *Tracked) Held(key string) bool {
	g := t.groupFor(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[key]
}

// ReleaseAll releases every key and button the books say is held.
// Runs on stop, pause, and loop teardown.
func (t *Tracked) ReleaseAll() {
	for _, k := range t.pan.drain() {
		t.sink.KeyUp(k)
	}
	for _, k := range t.action.drain() {
		t.sink.KeyUp(k)
	}
	t.btnMu.Lock()
	btns := make([]string, 0, len(t.btns))
	for b := range t.btns {
		btns = append(btns, b)
	}
	t.btns = make(map[string]bool)
	t.btnMu.Unlock()
	for _, b := range btns {
		t.sink.ButtonUp(b)
	}
}
