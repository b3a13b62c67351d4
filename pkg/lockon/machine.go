package lockon

import (
	"image"
	"math"
	"time"

	"github.com/skeetbot/skeet/internal/log"
	"github.com/skeetbot/skeet/pkg/detect"
	"github.com/skeetbot/skeet/pkg/profile"
)

// Result is what one Update hands back to the engine.
type Result struct {
	// Fused is the position belief for this tick: a validated
	// detection, a synthetic prediction, or nil when there is none.
	Fused *detect.Detection

	Transition Transition
	Reason     string // populated on TransitionRelease
}

// Machine owns the lock state. It is driven by exactly one goroutine;
// the tick loop calls Update once per frame.
type Machine struct {
	cfg Config

	mode    Mode
	prof    *profile.Profile
	learner *profile.Learner

	lastCenter   image.Point
	hasCenter    bool
	lastAcceptAt time.Time
	vx, vy       float64

	rejections int
	lockedAt   time.Time

	lastMove   time.Time
	stuckCount int
	history    []image.Rectangle

	frameArea int
}

// NewMachine returns a machine in the Unlocked state.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// SetFrameSize tells the machine the capture region dimensions,
// enabling the relative-area initiation gate.
func (m *Machine) SetFrameSize(w, h int) { m.frameArea = w * h }

// Mode returns the current lock mode.
func (m *Machine) Mode() Mode { return m.mode }

// Profile returns the committed profile, nil before lock.
func (m *Machine) Profile() *profile.Profile { return m.prof }

// LastCenter returns the last trusted center and whether one exists.
func (m *Machine) LastCenter() (image.Point, bool) { return m.lastCenter, m.hasCenter }

// LastBox returns the most recently accepted bounding box and whether
// one exists.
func (m *Machine) LastBox() (image.Rectangle, bool) {
	if len(m.history) == 0 {
		return image.Rectangle{}, false
	}
	return m.history[len(m.history)-1], true
}

// Velocity returns the smoothed velocity estimate in px/s.
func (m *Machine) Velocity() (vx, vy float64) { return m.vx, m.vy }

// Rejections returns the consecutive rejection count.
func (m *Machine) Rejections() int { return m.rejections }

// LearnerProgress reports accepted samples while learning.
func (m *Machine) LearnerProgress() int {
	if m.learner == nil {
		return 0
	}
	return m.learner.Samples()
}

// Update advances the machine one tick. cand is the best detector
// candidate for this frame (nil when no detector fired), sig its hue
// signature when one was computed, and engaged whether a load/fire
// phase is running.
func (m *Machine) Update(now time.Time, cand *detect.Detection, sig []float32, engaged bool) Result {
	switch m.mode {
	case Unlocked:
		return m.updateUnlocked(now, cand, sig)
	case Learning:
		return m.updateLearning(now, cand, sig)
	case Locked, Lost:
		return m.updateLocked(now, cand, sig, engaged)
	}
	return Result{}
}

func (m *Machine) updateUnlocked(now time.Time, cand *detect.Detection, sig []float32) Result {
	if cand == nil || !m.initiable(cand) {
		return Result{}
	}

	m.learner = profile.NewLearner(m.cfg.Learn)
	m.learner.Observe(now, *cand, sig)
	m.mode = Learning
	m.adopt(now, cand)
	log.Info("learning started", "box", cand.Box, "confidence", cand.Confidence)
	return Result{Fused: cand, Transition: TransitionLearnStart}
}

// initiable gates which candidates may open a learning window: big
// enough to be the target sprite, not so big it is a scene flash, and
// with a plausible aspect ratio.
func (m *Machine) initiable(cand *detect.Detection) bool {
	w, h := cand.Box.Dx(), cand.Box.Dy()
	if w < m.cfg.MinSizeFloor || h < m.cfg.MinSizeFloor {
		return false
	}
	if m.cfg.MaxInitAreaFrac > 0 && m.frameArea > 0 &&
		float64(w*h) > m.cfg.MaxInitAreaFrac*float64(m.frameArea) {
		return false
	}
	if m.cfg.InitAspectMax > 0 && h > 0 {
		aspect := float64(w) / float64(h)
		if aspect < m.cfg.InitAspectMin || aspect > m.cfg.InitAspectMax {
			return false
		}
	}
	return true
}

func (m *Machine) updateLearning(now time.Time, cand *detect.Detection, sig []float32) Result {
	var fused *detect.Detection
	if cand != nil && m.learner.Observe(now, *cand, sig) {
		m.adopt(now, cand)
		fused = cand
	}

	if !m.learner.Done(now) {
		return Result{Fused: fused}
	}

	prof, err := m.learner.Commit(now)
	m.learner = nil
	if err != nil {
		reason := err.Error()
		m.release(reason)
		return Result{Transition: TransitionRelease, Reason: reason}
	}

	m.prof = prof
	m.mode = Locked
	m.lockedAt = now
	m.lastMove = now
	m.rejections = 0
	m.stuckCount = 0
	log.Info("lock acquired",
		"size_min", prof.SizeMin, "size_max", prof.SizeMax,
		"avg_speed", prof.AvgSpeed)
	return Result{Fused: fused, Transition: TransitionLock}
}

func (m *Machine) updateLocked(now time.Time, cand *detect.Detection, sig []float32, engaged bool) Result {
	if now.Sub(m.lockedAt) > m.cfg.LockTimeout {
		reason := "lock timeout"
		m.release(reason)
		return Result{Transition: TransitionRelease, Reason: reason}
	}

	if cand != nil && m.validate(cand, sig) {
		return m.accept(now, cand)
	}

	// Invalid or absent candidate: bridge the gap with the velocity
	// projection until the rejection ceiling.
	m.rejections++
	m.mode = Lost

	limit := m.cfg.RejectionLimit
	if engaged {
		limit = m.cfg.RejectionLimitEngaged
	}
	if m.rejections >= limit {
		reason := "rejection limit reached"
		m.release(reason)
		return Result{Transition: TransitionRelease, Reason: reason}
	}

	return Result{Fused: m.predicted()}
}

// validate checks a candidate against the committed profile: size
// range, plausible jump from the last trusted center, and hue
// similarity when both signatures exist.
func (m *Machine) validate(cand *detect.Detection, sig []float32) bool {
	if !m.prof.SizeValid(cand.MaxDim()) {
		return false
	}

	if m.hasCenter {
		jump := dist(m.lastCenter, cand.Center())
		if jump > m.prof.MaxJump(m.cfg.TickInterval, m.cfg.JumpFloorPx) {
			return false
		}
	}

	if len(m.prof.Signature) > 0 && len(sig) > 0 {
		score := profile.Correlation(m.prof.Signature, sig)
		cand.ColorScore = score
		if score < m.cfg.ColorSimilarityMin {
			return false
		}
	}
	return true
}

func (m *Machine) accept(now time.Time, cand *detect.Detection) Result {
	displacement := math.Inf(1)
	if m.hasCenter {
		displacement = dist(m.lastCenter, cand.Center())
	}

	m.adopt(now, cand)
	m.rejections = 0
	m.mode = Locked

	if displacement < m.cfg.StuckPx {
		m.stuckCount++
	} else {
		m.stuckCount = 0
		m.lastMove = now
	}

	if m.stuckCount >= m.cfg.StuckFrames {
		reason := "target stuck: no displacement across consecutive frames"
		m.release(reason)
		return Result{Transition: TransitionRelease, Reason: reason}
	}
	if now.Sub(m.lastMove) > m.cfg.MovementTimeout {
		reason := "target stuck: no movement within timeout"
		m.release(reason)
		return Result{Transition: TransitionRelease, Reason: reason}
	}

	return Result{Fused: cand}
}

// adopt records an accepted center, refreshing the velocity estimate
// and the bounded box history.
func (m *Machine) adopt(now time.Time, cand *detect.Detection) {
	center := cand.Center()

	if m.hasCenter {
		dt := now.Sub(m.lastAcceptAt).Seconds()
		if dt > 0 {
			keep := m.cfg.VelocityKeep
			m.vx = keep*m.vx + (1-keep)*(float64(center.X-m.lastCenter.X)/dt)
			m.vy = keep*m.vy + (1-keep)*(float64(center.Y-m.lastCenter.Y)/dt)
		}
	}

	m.lastCenter = center
	m.hasCenter = true
	m.lastAcceptAt = now

	m.history = append(m.history, cand.Box)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[1:]
	}
}

// predicted builds the synthetic detection substituted while real
// candidates are missing: the last trusted box translated along the
// smoothed velocity, one tick per consecutive miss.
func (m *Machine) predicted() *detect.Detection {
	if !m.hasCenter || len(m.history) == 0 {
		return nil
	}

	lead := m.cfg.TickInterval.Seconds() * float64(m.rejections)
	dx := int(m.vx * lead)
	dy := int(m.vy * lead)

	box := m.history[len(m.history)-1].Add(image.Pt(dx, dy))
	return &detect.Detection{
		Box:        box,
		Confidence: 0.2,
		Synthetic:  true,
	}
}

// ForceRelease drops the lock for a reason decided outside the
// machine, such as an exhausted tracker with a failed recovery search.
func (m *Machine) ForceRelease(reason string) Result {
	if m.mode == Unlocked {
		return Result{}
	}
	m.release(reason)
	return Result{Transition: TransitionRelease, Reason: reason}
}

func (m *Machine) release(reason string) {
	log.Info("lock released", "reason", reason, "mode", m.mode.String())
	m.mode = Unlocked
	m.prof = nil
	m.learner = nil
	m.hasCenter = false
	m.vx, m.vy = 0, 0
	m.rejections = 0
	m.stuckCount = 0
	m.history = nil
}

func dist(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
