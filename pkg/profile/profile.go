// Package profile holds the learned target profile and the learner
// that builds one from a stream of accepted detections.
package profile

import (
	"math"
	"time"
)

// Profile is the committed description of the target: how big it runs,
// how fast it moves, and what it looks like in hue space. Read-only
// after commit.
type Profile struct {
	SizeMin   int
	SizeMax   int
	AvgSpeed  float64 // px/s
	Signature []float32
	Committed time.Time
}

// SizeValid reports whether a bounding-box major dimension falls
// inside the learned size range.
func (p *Profile) SizeValid(maxDim int) bool {
	return maxDim >= p.SizeMin && maxDim <= p.SizeMax
}

// MaxJump returns the largest center displacement the profile
// considers plausible for one tick: three ticks' worth of travel at
// the learned speed, floored by the configured absolute threshold.
func (p *Profile) MaxJump(tick time.Duration, absFloor float64) float64 {
	bySpeed := p.AvgSpeed * tick.Seconds() * 3
	return math.Max(absFloor, bySpeed)
}

// Correlation compares two normalized histograms with the Pearson
// correlation coefficient, the same measure OpenCV's histogram
// comparison uses. Returns 0 when either input is degenerate.
func Correlation(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	n := float64(len(a))

	var sumA, sumB float64
	for i := range a {
		sumA += float64(a[i])
		sumB += float64(b[i])
	}
	meanA := sumA / n
	meanB := sumB / n

	var num, denA, denB float64
	for i := range a {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	den := math.Sqrt(denA * denB)
	if den == 0 {
		return 0
	}
	return num / den
}
