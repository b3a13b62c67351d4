package sequence

import (
	"image"
	"testing"
	"time"

	"github.com/skeetbot/skeet/pkg/detect"
)

type fakeAttack struct {
	starts  int
	stops   int
	playing bool
}

func (f *fakeAttack) Start(loop bool) error { f.starts++; f.playing = true; return nil }
func (f *fakeAttack) Stop()                 { f.stops++; f.playing = false }
func (f *fakeAttack) IsPlaying() bool       { return f.playing }

type fakeKeys struct {
	taps []string
}

func (f *fakeKeys) Tap(key string) { f.taps = append(f.taps, key) }

func centered(width int) *detect.Detection {
	return &detect.Detection{Box: image.Rect(width/2-30, 270, width/2+30, 330), Confidence: 0.9}
}

func atX(x int) *detect.Detection {
	return &detect.Detection{Box: image.Rect(x-30, 270, x+30, 330), Confidence: 0.9}
}

// drive ticks the sequencer at a fixed interval until the event
// appears or the deadline passes, returning the event time.
func drive(t *testing.T, s *Sequencer, start time.Time, tick time.Duration, fused *detect.Detection, want Event, deadline time.Duration) time.Time {
	t.Helper()
	for now := start; now.Sub(start) <= deadline; now = now.Add(tick) {
		if ev := s.Update(now, fused, fused != nil); ev == want {
			return now
		}
	}
	t.Fatalf("event %v not observed within %v", want, deadline)
	return time.Time{}
}

func TestLoadRequiresConsecutiveDetections(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSequencer(cfg, 800, &fakeAttack{}, &fakeKeys{})
	now := time.Now()

	// Two hits then a miss must not start loading.
	for i := 0; i < 2; i++ {
		if ev := s.Update(now, centered(800), true); ev != EventNone {
			t.Fatalf("tick %d: unexpected event %v", i, ev)
		}
		now = now.Add(40 * time.Millisecond)
	}
	s.Update(now, nil, true)
	now = now.Add(40 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if ev := s.Update(now, centered(800), true); ev != EventNone {
			t.Fatalf("streak should have reset, got %v", ev)
		}
		now = now.Add(40 * time.Millisecond)
	}
	if ev := s.Update(now, centered(800), true); ev != EventLoadStart {
		t.Fatalf("third consecutive hit should start load, got %v", ev)
	}
	if s.Phase() != Load {
		t.Fatalf("phase = %v, want load", s.Phase())
	}
}

func TestLoadBlockedOutsideSafeZone(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSequencer(cfg, 800, &fakeAttack{}, &fakeKeys{})
	now := time.Now()

	// x=100 of 800 is 12.5%, below the 25% edge.
	for i := 0; i < 10; i++ {
		if ev := s.Update(now, atX(100), true); ev != EventNone {
			t.Fatalf("edge target must not start load, got %v", ev)
		}
		now = now.Add(40 * time.Millisecond)
	}

	// Once steering brings it back inside, the held streak fires.
	if ev := s.Update(now, atX(400), true); ev != EventLoadStart {
		t.Fatalf("re-centered target should start load, got %v", ev)
	}
}

func TestPhaseTimersAreTickRateIndependent(t *testing.T) {
	for _, tick := range []time.Duration{40 * time.Millisecond, 10 * time.Millisecond} {
		attack := &fakeAttack{}
		s := NewSequencer(DefaultConfig(), 800, attack, &fakeKeys{})
		start := time.Unix(1000, 0)

		loadAt := drive(t, s, start, tick, centered(800), EventLoadStart, time.Second)
		fireAt := drive(t, s, loadAt, tick, centered(800), EventFireStart, 2*time.Second)
		coolAt := drive(t, s, fireAt, tick, centered(800), EventCooldownStart, 6*time.Second)

		if d := fireAt.Sub(loadAt); d < time.Second || d > time.Second+2*tick {
			t.Errorf("tick %v: load lasted %v, want ~1s", tick, d)
		}
		if d := coolAt.Sub(fireAt); d < 5*time.Second || d > 5*time.Second+2*tick {
			t.Errorf("tick %v: fire lasted %v, want ~5s", tick, d)
		}
		if attack.starts != 1 {
			t.Errorf("tick %v: attack started %d times, want 1", tick, attack.starts)
		}
	}
}

func TestFireRunsOutTimerAfterTargetLoss(t *testing.T) {
	attack := &fakeAttack{}
	keys := &fakeKeys{}
	s := NewSequencer(DefaultConfig(), 800, attack, keys)
	start := time.Unix(1000, 0)

	loadAt := drive(t, s, start, 40*time.Millisecond, centered(800), EventLoadStart, time.Second)
	fireAt := drive(t, s, loadAt, 40*time.Millisecond, centered(800), EventFireStart, 2*time.Second)

	// Target vanishes for the whole fire phase.
	coolAt := drive(t, s, fireAt, 40*time.Millisecond, nil, EventCooldownStart, 6*time.Second)
	if d := coolAt.Sub(fireAt); d < 5*time.Second {
		t.Fatalf("fire cut short at %v after target loss", d)
	}
	if attack.stops != 1 {
		t.Fatalf("attack stops = %d, want 1", attack.stops)
	}
	if len(keys.taps) == 0 || keys.taps[0] != "1" {
		t.Fatalf("commit key not tapped at fire end: %v", keys.taps)
	}
}

func TestCooldownAbortsWhenTargetOutOfBand(t *testing.T) {
	attack := &fakeAttack{}
	keys := &fakeKeys{}
	s := NewSequencer(DefaultConfig(), 800, attack, keys)
	start := time.Unix(1000, 0)

	loadAt := drive(t, s, start, 40*time.Millisecond, centered(800), EventLoadStart, time.Second)
	fireAt := drive(t, s, loadAt, 40*time.Millisecond, centered(800), EventFireStart, 2*time.Second)
	coolAt := drive(t, s, fireAt, 40*time.Millisecond, centered(800), EventCooldownStart, 6*time.Second)

	// x=40 of 800 is 5%, outside the 20-80% acceptance band.
	ev := drive(t, s, coolAt, 40*time.Millisecond, atX(40), EventAbort, 7*time.Second)
	if d := ev.Sub(coolAt); d < 6*time.Second {
		t.Fatalf("cooldown aborted early at %v", d)
	}
	if s.Phase() != Idle {
		t.Fatalf("phase after abort = %v, want idle", s.Phase())
	}
	// The commit keystroke must have fired even though the cycle
	// ultimately aborted.
	if keys.taps[0] != "1" {
		t.Fatalf("commit key missing before abort: %v", keys.taps)
	}
}

func TestCooldownChainsIntoNextLoad(t *testing.T) {
	attack := &fakeAttack{}
	s := NewSequencer(DefaultConfig(), 800, attack, &fakeKeys{})
	start := time.Unix(1000, 0)

	loadAt := drive(t, s, start, 40*time.Millisecond, centered(800), EventLoadStart, time.Second)
	fireAt := drive(t, s, loadAt, 40*time.Millisecond, centered(800), EventFireStart, 2*time.Second)
	coolAt := drive(t, s, fireAt, 40*time.Millisecond, centered(800), EventCooldownStart, 6*time.Second)

	// x=200 of 800 is 25%: inside the acceptance band even though it
	// sits on the stricter safe-zone edge.
	drive(t, s, coolAt, 40*time.Millisecond, atX(200), EventLoadStart, 7*time.Second)
	if attack.starts != 2 {
		t.Fatalf("attack starts = %d, want 2", attack.starts)
	}
}

func TestCooldownTapsInteractKey(t *testing.T) {
	keys := &fakeKeys{}
	s := NewSequencer(DefaultConfig(), 800, &fakeAttack{}, keys)
	start := time.Unix(1000, 0)

	loadAt := drive(t, s, start, 40*time.Millisecond, centered(800), EventLoadStart, time.Second)
	fireAt := drive(t, s, loadAt, 40*time.Millisecond, centered(800), EventFireStart, 2*time.Second)
	coolAt := drive(t, s, fireAt, 40*time.Millisecond, centered(800), EventCooldownStart, 6*time.Second)

	keys.taps = nil
	for now := coolAt; now.Sub(coolAt) < 3*time.Second; now = now.Add(40 * time.Millisecond) {
		s.Update(now, centered(800), true)
	}
	interact := 0
	for _, k := range keys.taps {
		if k == "e" {
			interact++
		}
	}
	// 3s of cooldown at a 150ms cadence is about 20 taps.
	if interact < 15 || interact > 25 {
		t.Fatalf("interact taps = %d over 3s, want ~20", interact)
	}
}

func TestResetStopsRunningAttack(t *testing.T) {
	attack := &fakeAttack{}
	s := NewSequencer(DefaultConfig(), 800, attack, &fakeKeys{})
	start := time.Unix(1000, 0)

	drive(t, s, start, 40*time.Millisecond, centered(800), EventLoadStart, time.Second)
	s.Reset()
	if s.Phase() != Idle {
		t.Fatalf("phase after reset = %v, want idle", s.Phase())
	}
	if attack.stops != 1 {
		t.Fatalf("reset did not stop attack playback")
	}
}
