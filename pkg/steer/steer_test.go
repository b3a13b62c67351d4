package steer

import (
	"image"
	"testing"

	"github.com/skeetbot/skeet/pkg/detect"
)

// recordingHolder mirrors physical key state from the event stream and
// remembers the order events arrived in.
type recordingHolder struct {
	t      *testing.T
	down   map[string]bool
	events []string
}

func newRecordingHolder(t *testing.T) *recordingHolder {
	return &recordingHolder{t: t, down: make(map[string]bool)}
}

func (h *recordingHolder) KeyDown(key string) {
	h.down[key] = true
	h.events = append(h.events, "down:"+key)
	if h.down["left"] && h.down["right"] {
		h.t.Fatalf("both pan keys held after %v", h.events)
	}
}

func (h *recordingHolder) KeyUp(key string) {
	h.down[key] = false
	h.events = append(h.events, "up:"+key)
}

func at(x int) *detect.Detection {
	return &detect.Detection{Box: image.Rect(x-20, 280, x+20, 320)}
}

func TestSteeringNeverHoldsBothDirections(t *testing.T) {
	h := newRecordingHolder(t)
	s := NewSteerer(DefaultConfig(), 800, h)

	// Flap the target across the deadzone edges for a while; the
	// recording holder fails the test if both keys are ever down.
	xs := []int{100, 700, 100, 700, 400, 100, 400, 700, 50, 750}
	for i := 0; i < 40; i++ {
		s.Update(at(xs[i%len(xs)]), false)
	}
}

func TestDirectionSwitchReleasesBeforePressing(t *testing.T) {
	h := newRecordingHolder(t)
	s := NewSteerer(DefaultConfig(), 800, h)

	s.Update(at(100), false) // left of center
	if s.Held() != Left {
		t.Fatalf("held = %v, want left", s.Held())
	}

	h.events = nil
	s.Update(at(700), false) // right of center
	if len(h.events) != 2 || h.events[0] != "up:left" || h.events[1] != "down:right" {
		t.Fatalf("switch events = %v, want [up:left down:right]", h.events)
	}
}

func TestDeadzoneReleasesHeldKey(t *testing.T) {
	h := newRecordingHolder(t)
	s := NewSteerer(DefaultConfig(), 800, h)

	s.Update(at(100), false)
	s.Update(at(400), false) // dead center
	if s.Held() != None {
		t.Fatalf("held = %v inside deadzone, want none", s.Held())
	}
	if h.down["left"] || h.down["right"] {
		t.Fatalf("keys still down inside deadzone: %v", h.down)
	}
}

func TestEngagedAnchorShiftsDecision(t *testing.T) {
	h := newRecordingHolder(t)
	s := NewSteerer(DefaultConfig(), 800, h)

	// x=400 is dead center when idle but 80px left of the 60% anchor
	// (480), exactly on the deadzone edge; x=390 falls outside it.
	s.Update(at(390), false)
	if s.Held() != None {
		t.Fatalf("idle: held = %v, want none", s.Held())
	}
	s.Update(at(390), true)
	if s.Held() != Left {
		t.Fatalf("engaged: held = %v, want left", s.Held())
	}
}

func TestLostTargetReleases(t *testing.T) {
	h := newRecordingHolder(t)
	s := NewSteerer(DefaultConfig(), 800, h)

	s.Update(at(100), false)
	s.Update(nil, false)
	if s.Held() != None || h.down["left"] {
		t.Fatalf("keys not released on target loss")
	}
}

func TestSearchHoldsLeft(t *testing.T) {
	h := newRecordingHolder(t)
	s := NewSteerer(DefaultConfig(), 800, h)

	for i := 0; i < 5; i++ {
		s.Search()
	}
	if s.Held() != Left || !h.down["left"] {
		t.Fatalf("search should hold left, held = %v", s.Held())
	}
	downs := 0
	for _, e := range h.events {
		if e == "down:left" {
			downs++
		}
	}
	if downs != 1 {
		t.Fatalf("left pressed %d times across 5 search ticks, want 1", downs)
	}
}

func TestPeriodicSweepReleasesStuckKey(t *testing.T) {
	h := newRecordingHolder(t)
	cfg := DefaultConfig()
	cfg.SweepTicks = 10
	s := NewSteerer(cfg, 800, h)

	for i := 0; i < 25; i++ {
		s.Update(at(100), false)
	}
	ups := 0
	for _, e := range h.events {
		if e == "up:right" {
			ups++
		}
	}
	// Two sweeps in 25 ticks, each sends key-up for both directions
	// even though right was never pressed.
	if ups != 2 {
		t.Fatalf("sweep key-ups for right = %d, want 2", ups)
	}
}
