package profile

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/skeetbot/skeet/pkg/detect"
)

// Config tunes the learning window and the commit gates.
type Config struct {
	Window        time.Duration // total learning duration
	MinSamples    int
	MinContinuous time.Duration // longest uninterrupted accept run required
	MaxJumpPx     float64       // center jump ceiling between accepted samples
	SizeRatioMin  float64       // accepted size ratio vs reference
	SizeRatioMax  float64
	SpeedMin      float64 // px/s, plausible band for the committed profile
	SpeedMax      float64
	Tolerance     float64 // size-bound widening as a fraction of observed range
	AbsSizeMin    int     // absolute clamps for the widened bounds
	AbsSizeMax    int
}

// DefaultConfig returns the learning gates used in production.
func DefaultConfig() Config {
	return Config{
		Window:        10 * time.Second,
		MinSamples:    50,
		MinContinuous: 3 * time.Second,
		MaxJumpPx:     200,
		SizeRatioMin:  0.5,
		SizeRatioMax:  2.0,
		SpeedMin:      10,
		SpeedMax:      500,
		Tolerance:     0.5,
		AbsSizeMin:    25,
		AbsSizeMax:    300,
	}
}

type sample struct {
	at     time.Time
	center image.Point
	maxDim int
}

// Learner accumulates detections over the learning window and commits
// a Profile when they hold together, or reports why they did not.
// Zero value is not usable; call NewLearner.
type Learner struct {
	cfg Config

	started time.Time
	refDim  int

	samples []sample

	continuousFrom time.Time
	bestContinuous time.Duration

	rejections int

	sigSum   []float64
	sigCount int
}

// NewLearner starts an empty learning window. The first observed
// detection becomes the reference sample.
func NewLearner(cfg Config) *Learner {
	return &Learner{cfg: cfg}
}

// Observe offers one detection to the learner. It returns true when
// the sample was accepted. A rejected sample resets the continuity
// run but keeps everything accepted so far.
func (l *Learner) Observe(now time.Time, det detect.Detection, sig []float32) bool {
	dim := det.MaxDim()
	center := det.Center()

	if len(l.samples) == 0 {
		l.started = now
		l.refDim = dim
		l.accept(now, center, dim, sig)
		return true
	}

	ratio := float64(dim) / float64(l.refDim)
	if ratio < l.cfg.SizeRatioMin || ratio > l.cfg.SizeRatioMax {
		l.reject()
		return false
	}

	prev := l.samples[len(l.samples)-1]
	if dist(prev.center, center) > l.cfg.MaxJumpPx {
		l.reject()
		return false
	}

	l.accept(now, center, dim, sig)
	return true
}

func (l *Learner) accept(now time.Time, center image.Point, dim int, sig []float32) {
	if l.continuousFrom.IsZero() {
		l.continuousFrom = now
	}
	if run := now.Sub(l.continuousFrom); run > l.bestContinuous {
		l.bestContinuous = run
	}
	l.samples = append(l.samples, sample{at: now, center: center, maxDim: dim})

	if len(sig) > 0 {
		if l.sigSum == nil {
			l.sigSum = make([]float64, len(sig))
		}
		if len(sig) == len(l.sigSum) {
			for i, v := range sig {
				l.sigSum[i] += float64(v)
			}
			l.sigCount++
		}
	}
}

func (l *Learner) reject() {
	l.continuousFrom = time.Time{}
	l.rejections++
}

// Done reports whether the learning window has elapsed.
func (l *Learner) Done(now time.Time) bool {
	return len(l.samples) > 0 && now.Sub(l.started) >= l.cfg.Window
}

// Samples returns how many detections have been accepted.
func (l *Learner) Samples() int { return len(l.samples) }

// Rejections returns the rejected-sample count, for logs.
func (l *Learner) Rejections() int { return l.rejections }

// Commit evaluates the window and builds the profile. Every gate
// failure discards the whole window; there is no partial commit.
func (l *Learner) Commit(now time.Time) (*Profile, error) {
	if len(l.samples) < l.cfg.MinSamples {
		return nil, fmt.Errorf("profile: only %d samples, need %d", len(l.samples), l.cfg.MinSamples)
	}
	if l.bestContinuous < l.cfg.MinContinuous {
		return nil, fmt.Errorf("profile: best continuous run %.1fs, need %.1fs",
			l.bestContinuous.Seconds(), l.cfg.MinContinuous.Seconds())
	}

	speed := l.averageSpeed()
	if speed < l.cfg.SpeedMin || speed > l.cfg.SpeedMax {
		return nil, fmt.Errorf("profile: average speed %.0f px/s outside %.0f-%.0f",
			speed, l.cfg.SpeedMin, l.cfg.SpeedMax)
	}

	obsMin, obsMax := l.samples[0].maxDim, l.samples[0].maxDim
	for _, s := range l.samples[1:] {
		if s.maxDim < obsMin {
			obsMin = s.maxDim
		}
		if s.maxDim > obsMax {
			obsMax = s.maxDim
		}
	}

	pad := int(l.cfg.Tolerance * float64(obsMax-obsMin))
	sizeMin := obsMin - pad
	sizeMax := obsMax + pad
	if sizeMin < l.cfg.AbsSizeMin {
		sizeMin = l.cfg.AbsSizeMin
	}
	if sizeMax > l.cfg.AbsSizeMax {
		sizeMax = l.cfg.AbsSizeMax
	}
	if sizeMin > sizeMax {
		sizeMin = sizeMax
	}

	return &Profile{
		SizeMin:   sizeMin,
		SizeMax:   sizeMax,
		AvgSpeed:  speed,
		Signature: l.meanSignature(),
		Committed: now,
	}, nil
}

// averageSpeed is the mean inter-sample speed over consecutive
// accepted samples.
func (l *Learner) averageSpeed() float64 {
	var total float64
	var count int
	for i := 1; i < len(l.samples); i++ {
		dt := l.samples[i].at.Sub(l.samples[i-1].at).Seconds()
		if dt <= 0 {
			continue
		}
		total += dist(l.samples[i-1].center, l.samples[i].center) / dt
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (l *Learner) meanSignature() []float32 {
	if l.sigCount == 0 {
		return nil
	}
	sig := make([]float32, len(l.sigSum))
	for i, v := range l.sigSum {
		sig[i] = float32(v / float64(l.sigCount))
	}
	return sig
}

func dist(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Hypot(dx, dy)
}
