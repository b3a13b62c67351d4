package engine

import (
	"time"

	"github.com/skeetbot/skeet/pkg/capture"
	"github.com/skeetbot/skeet/pkg/detect"
	"github.com/skeetbot/skeet/pkg/lockon"
	"github.com/skeetbot/skeet/pkg/sequence"
	"github.com/skeetbot/skeet/pkg/steer"
)

// Config collects the tuning for one engine run. The sub-configs are
// owned by their packages; engine-level fields cover the loop itself
// and the session bootstrap.
type Config struct {
	// Loop cadence. Everything downstream derives per-tick allowances
	// from this, so it must match lockon.Config.TickInterval.
	TickInterval time.Duration

	// Detector arrangement, fixed for the run.
	DetectorMode detect.Mode
	Detect       detect.Config

	// Lock acquisition and validation.
	Lock lockon.Config

	// Attack phase cycle.
	Sequence sequence.Config

	// Camera steering.
	Steer steer.Config

	// Frame hygiene applied before detection.
	Hygiene capture.Hygiene

	// Camera zoom normalization on session start: scroll fully out,
	// then nudge back in, so the view matches the one the profiles and
	// templates were captured at.
	ZoomOutSteps int
	ZoomInSteps  int
	ZoomPause    time.Duration

	// Dashboard frame publishing. Encoding is skipped entirely while
	// no client watches; while one does, every Nth tick is encoded.
	FrameEveryTicks  int
	FrameJPEGQuality int

	// Stats persistence cadence. Zero disables the flush ticker.
	StatsFlushInterval time.Duration
}

// DefaultConfig returns the production tuning: 25 Hz loop, hybrid
// detection, and the per-package defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:       40 * time.Millisecond,
		DetectorMode:       detect.ModeHybrid,
		Detect:             detect.DefaultConfig(),
		Lock:               lockon.DefaultConfig(),
		Sequence:           sequence.DefaultConfig(),
		Steer:              steer.DefaultConfig(),
		Hygiene:            capture.DefaultHygiene(),
		ZoomOutSteps:       20,
		ZoomInSteps:        2,
		ZoomPause:          400 * time.Millisecond,
		FrameEveryTicks:    2,
		FrameJPEGQuality:   70,
		StatsFlushInterval: 30 * time.Second,
	}
}

// CautiousConfig trades acquisition speed for fewer false locks:
// longer learning, stricter color validation, and a tighter rejection
// ceiling so bad locks die quickly.
func CautiousConfig() Config {
	cfg := DefaultConfig()
	cfg.Lock.ColorSimilarityMin = 0.7
	cfg.Lock.RejectionLimit = 12
	cfg.Lock.RejectionLimitEngaged = 35
	cfg.Lock.Learn.MinSamples = 75
	cfg.Lock.Learn.Window = 12 * time.Second
	cfg.Sequence.ConsecutiveToLoad = 5
	return cfg
}

// AggressiveConfig starts attacking sooner and holds locks longer
// through occlusion, at the cost of more wasted cycles on bad locks.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Lock.ColorSimilarityMin = 0.5
	cfg.Lock.RejectionLimit = 30
	cfg.Lock.RejectionLimitEngaged = 70
	cfg.Lock.Learn.MinSamples = 35
	cfg.Sequence.ConsecutiveToLoad = 2
	cfg.Sequence.SafeZoneMin = 0.20
	cfg.Sequence.SafeZoneMax = 0.80
	return cfg
}
