// Package steer turns the fused target position into pan-left or
// pan-right key holds that walk the target toward a horizontal anchor.
package steer

import (
	"fmt"

	"github.com/skeetbot/skeet/pkg/detect"
)

// Direction is which pan key is currently held. At most one.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

// String returns the direction label shown on the overlay.
func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Holder is the slice of the input sink steering needs.
type Holder interface {
	KeyDown(key string)
	KeyUp(key string)
}

// Config tunes the steering geometry.
type Config struct {
	LeftKey  string
	RightKey string

	// DeadzoneFrac is the centered tolerance band, as a fraction of
	// the capture width, inside which no key is held.
	DeadzoneFrac float64

	// EngagedAnchorFrac shifts the anchor off center while an attack
	// cycle runs so the target leads the camera slightly.
	EngagedAnchorFrac float64

	// SweepTicks forces a release of both pan keys every N ticks so a
	// missed key-up can never outlive that bound. 0 disables.
	SweepTicks int
}

// DefaultConfig returns the production steering geometry.
func DefaultConfig() Config {
	return Config{
		LeftKey:           "left",
		RightKey:          "right",
		DeadzoneFrac:      0.10,
		EngagedAnchorFrac: 0.60,
		SweepTicks:        100,
	}
}

// Steerer holds the single-direction key state. Driven by one
// goroutine; the Holder absorbs any cross-thread concerns.
type Steerer struct {
	cfg   Config
	width int
	keys  Holder

	held  Direction
	ticks int
}

// NewSteerer builds a released steerer for a capture region width.
func NewSteerer(cfg Config, width int, keys Holder) *Steerer {
	return &Steerer{cfg: cfg, width: width, keys: keys}
}

// Held returns the currently held direction.
func (s *Steerer) Held() Direction { return s.held }

// Update issues the pan key hold for this tick. A nil fused position
// releases both keys; search rotation is a separate call.
func (s *Steerer) Update(fused *detect.Detection, engaged bool) {
	s.tickSweep()
	if fused == nil {
		s.apply(None)
		return
	}

	anchor := float64(s.width) / 2
	if engaged {
		anchor = s.cfg.EngagedAnchorFrac * float64(s.width)
	}

	offset := float64(fused.Center().X) - anchor
	deadzone := s.cfg.DeadzoneFrac * float64(s.width)

	switch {
	case offset < -deadzone:
		s.apply(Left)
	case offset > deadzone:
		s.apply(Right)
	default:
		s.apply(None)
	}
}

// Search holds the left pan key to rotate the view while no target is
// known. Called once per tick instead of Update.
func (s *Steerer) Search() {
	s.tickSweep()
	s.apply(Left)
}

// ReleaseAll sends key-up for both pan keys regardless of what the
// bookkeeping believes is held.
func (s *Steerer) ReleaseAll() {
	s.keys.KeyUp(s.cfg.LeftKey)
	s.keys.KeyUp(s.cfg.RightKey)
	s.held = None
}

// tickSweep counts ticks and runs the periodic forced release.
func (s *Steerer) tickSweep() {
	s.ticks++
	if s.cfg.SweepTicks > 0 && s.ticks%s.cfg.SweepTicks == 0 {
		s.ReleaseAll()
	}
}

// apply moves to the wanted direction, always releasing the old key
// before pressing the new one.
func (s *Steerer) apply(want Direction) {
	if s.held == want {
		return
	}
	if s.held != None {
		s.keys.KeyUp(s.key(s.held))
		s.held = None
	}
	if want != None {
		s.keys.KeyDown(s.key(want))
		s.held = want
	}
}

func (s *Steerer) key(d Direction) string {
	if d == Left {
		return s.cfg.LeftKey
	}
	return s.cfg.RightKey
}
