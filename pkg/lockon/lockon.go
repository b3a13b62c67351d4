// Package lockon implements the target lock state machine: it fuses
// per-tick detector candidates into a stable belief about where the
// target is, degrades that belief through velocity prediction while
// detectors miss, and decides when the lock must be dropped.
package lockon

import (
	"fmt"
	"time"

	"github.com/skeetbot/skeet/pkg/profile"
)

// Mode is the lock lifecycle state.
type Mode int

const (
	Unlocked Mode = iota
	Learning
	Locked
	Lost // lock held on prediction only
)

// String returns the mode label shown on the overlay.
func (m Mode) String() string {
	switch m {
	case Unlocked:
		return "unlocked"
	case Learning:
		return "learning"
	case Locked:
		return "locked"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Transition is the machine-level event produced by one Update, used
// by the engine to drive notifications and logging.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionLearnStart
	TransitionLock
	TransitionRelease
)

// Config tunes lock acquisition, validation, and release.
type Config struct {
	// TickInterval is the loop cadence, used to convert the learned
	// speed into a per-tick jump allowance.
	TickInterval time.Duration

	// MinSizeFloor gates which candidates may start a learning window.
	MinSizeFloor int

	// MaxInitAreaFrac rejects learning candidates covering more than
	// this fraction of the capture region. A near-full-frame box is a
	// scene flash, not a sprite. Active only once the frame size is
	// known; zero disables the check.
	MaxInitAreaFrac float64

	// InitAspectMin and InitAspectMax bound the width:height ratio a
	// candidate may have to start a learning window.
	InitAspectMin float64
	InitAspectMax float64

	// JumpFloorPx is the absolute floor of the plausible-jump radius;
	// the speed-derived allowance never shrinks below it.
	JumpFloorPx float64

	// ColorSimilarityMin rejects candidates whose hue signature
	// correlates worse than this against the committed one.
	ColorSimilarityMin float64

	// VelocityKeep is the weight of the previous velocity estimate in
	// the exponential smoothing update.
	VelocityKeep float64

	// RejectionLimit is how many consecutive invalid/absent candidates
	// are bridged with predictions before the lock drops. The engaged
	// limit applies while a load/fire phase runs, where occlusion by
	// the attack animation is expected.
	RejectionLimit        int
	RejectionLimitEngaged int

	// Stuck release: accepted centers moving less than StuckPx for
	// StuckFrames consecutive frames, or no movement beyond StuckPx
	// for MovementTimeout, releases the lock. The target sprite is
	// never stationary; a still box is a misdetected background.
	StuckPx         float64
	StuckFrames     int
	MovementTimeout time.Duration

	// LockTimeout bounds worst-case false-lock duration.
	LockTimeout time.Duration

	// HistorySize bounds the retained accepted-box history.
	HistorySize int

	// RecoveryRadius is the half-size of the wide color search window
	// used when the visual tracker loses its model.
	RecoveryRadius int

	// Learn configures the profile learner spawned on acquisition.
	Learn profile.Config
}

// DefaultConfig returns production lock tuning.
func DefaultConfig() Config {
	return Config{
		TickInterval:          40 * time.Millisecond,
		MinSizeFloor:          30,
		MaxInitAreaFrac:       0.25,
		InitAspectMin:         0.3,
		InitAspectMax:         3.5,
		JumpFloorPx:           150,
		ColorSimilarityMin:    0.6,
		VelocityKeep:          0.7,
		RejectionLimit:        20,
		RejectionLimitEngaged: 50,
		StuckPx:               10,
		StuckFrames:           10,
		MovementTimeout:       2 * time.Second,
		LockTimeout:           30 * time.Second,
		HistorySize:           5,
		RecoveryRadius:        220,
		Learn:                 profile.DefaultConfig(),
	}
}
