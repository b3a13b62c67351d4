// Package sequence implements the attack phase cycle layered on top of
// the lock state: idle -> load -> fire -> cooldown, driven by
// wall-clock phase timers so behavior is frame-rate independent.
package sequence

import (
	"fmt"
	"time"

	"github.com/skeetbot/skeet/internal/log"
	"github.com/skeetbot/skeet/pkg/detect"
)

// Phase is the current stage of the attack cycle.
type Phase int

const (
	Idle Phase = iota
	Load
	Fire
	Cooldown
)

// String returns the phase label shown on the overlay.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Load:
		return "load"
	case Fire:
		return "fire"
	case Cooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Event reports a phase transition of interest to the engine.
type Event int

const (
	EventNone Event = iota
	EventLoadStart
	EventFireStart
	EventCooldownStart
	EventAbort // cooldown ended with the target out of band
)

// Attack is the scripted input sequence the cycle times. Start is
// called at the load entry edge so one playback spans load and fire.
type Attack interface {
	Start(loop bool) error
	Stop()
	IsPlaying() bool
}

// KeyTapper issues the discrete keystrokes the cycle owns.
type KeyTapper interface {
	Tap(key string)
}

// Config tunes phase durations and position gates.
type Config struct {
	LoadDuration     time.Duration
	FireDuration     time.Duration
	CooldownDuration time.Duration

	// ConsecutiveToLoad is how many consecutive ticks with a fused
	// position are required before load may start.
	ConsecutiveToLoad int

	// SafeZone bounds the horizontal start window as fractions of the
	// capture width; AcceptBand is the wider window that lets a new
	// cycle chain out of cooldown.
	SafeZoneMin   float64
	SafeZoneMax   float64
	AcceptBandMin float64
	AcceptBandMax float64

	// InteractInterval paces the loot keystroke during cooldown.
	InteractInterval time.Duration

	CommitKey   string
	InteractKey string
}

// DefaultConfig returns the production cycle timing.
func DefaultConfig() Config {
	return Config{
		LoadDuration:      1 * time.Second,
		FireDuration:      5 * time.Second,
		CooldownDuration:  6 * time.Second,
		ConsecutiveToLoad: 3,
		SafeZoneMin:       0.25,
		SafeZoneMax:       0.75,
		AcceptBandMin:     0.20,
		AcceptBandMax:     0.80,
		InteractInterval:  150 * time.Millisecond,
		CommitKey:         "1",
		InteractKey:       "e",
	}
}

// Sequencer is the phase state machine. Driven by one goroutine.
type Sequencer struct {
	cfg    Config
	width  int
	attack Attack
	keys   KeyTapper

	phase           Phase
	phaseStart      time.Time
	attackCommitted bool

	consecutive  int
	lastInteract time.Time
}

// NewSequencer builds an idle sequencer for a capture region width.
func NewSequencer(cfg Config, width int, attack Attack, keys KeyTapper) *Sequencer {
	return &Sequencer{cfg: cfg, width: width, attack: attack, keys: keys}
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase { return s.phase }

// PhaseElapsed returns time spent in the current phase.
func (s *Sequencer) PhaseElapsed(now time.Time) time.Duration {
	if s.phaseStart.IsZero() {
		return 0
	}
	return now.Sub(s.phaseStart)
}

// Engaged reports whether a load or fire phase is running, the window
// in which lock loss is tolerated rather than acted on.
func (s *Sequencer) Engaged() bool { return s.phase == Load || s.phase == Fire }

// Update advances the cycle one tick. fused is the lock machine's
// position belief (nil when there is none) and locked whether a lock
// is held. The returned event is EventNone on ordinary ticks.
func (s *Sequencer) Update(now time.Time, fused *detect.Detection, locked bool) Event {
	switch s.phase {
	case Idle:
		return s.updateIdle(now, fused, locked)
	case Load:
		if now.Sub(s.phaseStart) >= s.cfg.LoadDuration {
			s.phase = Fire
			s.phaseStart = now
			log.Info("phase fire")
			return EventFireStart
		}
	case Fire:
		if now.Sub(s.phaseStart) >= s.cfg.FireDuration {
			return s.finishFire(now)
		}
	case Cooldown:
		return s.updateCooldown(now, fused)
	}
	return EventNone
}

func (s *Sequencer) updateIdle(now time.Time, fused *detect.Detection, locked bool) Event {
	if !locked || fused == nil {
		s.consecutive = 0
		return EventNone
	}

	s.consecutive++
	if s.consecutive < s.cfg.ConsecutiveToLoad {
		return EventNone
	}
	if !s.within(fused, s.cfg.SafeZoneMin, s.cfg.SafeZoneMax) {
		// Steering will walk the target back into the safe zone;
		// keep the streak so load starts the moment it re-enters.
		return EventNone
	}
	return s.beginLoad(now)
}

func (s *Sequencer) beginLoad(now time.Time) Event {
	s.phase = Load
	s.phaseStart = now
	s.consecutive = 0
	s.attackCommitted = true
	if err := s.attack.Start(false); err != nil {
		log.Warn("attack sequence failed to start", "error", err)
	}
	log.Info("phase load")
	return EventLoadStart
}

// finishFire stops the scripted sequence and fires the commit
// keystroke before cooldown begins. The commit fires regardless of
// what cooldown later decides.
func (s *Sequencer) finishFire(now time.Time) Event {
	s.attack.Stop()
	s.attackCommitted = false
	s.keys.Tap(s.cfg.CommitKey)

	s.phase = Cooldown
	s.phaseStart = now
	s.lastInteract = now
	log.Info("phase cooldown")
	return EventCooldownStart
}

func (s *Sequencer) updateCooldown(now time.Time, fused *detect.Detection) Event {
	if now.Sub(s.lastInteract) >= s.cfg.InteractInterval {
		s.keys.Tap(s.cfg.InteractKey)
		s.lastInteract = now
	}

	if now.Sub(s.phaseStart) < s.cfg.CooldownDuration {
		return EventNone
	}

	if fused != nil && s.within(fused, s.cfg.AcceptBandMin, s.cfg.AcceptBandMax) {
		return s.beginLoad(now)
	}

	s.phase = Idle
	s.phaseStart = now
	s.consecutive = 0
	log.Info("cycle aborted: target out of acceptance band")
	return EventAbort
}

// Reset returns the cycle to idle, stopping any running attack
// playback. Used on operator stop and lock teardown outside
// engagement.
func (s *Sequencer) Reset() {
	if s.attackCommitted {
		s.attack.Stop()
		s.attackCommitted = false
	}
	s.phase = Idle
	s.phaseStart = time.Time{}
	s.consecutive = 0
}

func (s *Sequencer) within(d *detect.Detection, minFrac, maxFrac float64) bool {
	x := float64(d.Center().X)
	w := float64(s.width)
	return x >= minFrac*w && x <= maxFrac*w
}
