// Package detect provides the candidate detectors that feed the lock-on
// state machine: template correlation, motion differencing, color
// segmentation, a model-free visual tracker, and a learned object model.
// Each detector returns at most one best candidate per frame.
package detect

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Detection is one candidate target region for a single frame.
// Coordinates are absolute pixels within the capture region.
type Detection struct {
	Box        image.Rectangle
	Confidence float64 // 0-1
	ColorScore float64 // hue-signature correlation, 0 when not computed
	Synthetic  bool    // velocity-predicted substitute, not a real sighting
}

// Center returns the center point of the bounding box.
func (d Detection) Center() image.Point {
	return image.Pt(d.Box.Min.X+d.Box.Dx()/2, d.Box.Min.Y+d.Box.Dy()/2)
}

// MaxDim returns the larger bounding-box dimension, the size measure
// used by profile validation.
func (d Detection) MaxDim() int {
	if d.Box.Dx() > d.Box.Dy() {
		return d.Box.Dx()
	}
	return d.Box.Dy()
}

// Area returns the bounding-box area in pixels.
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

// AimPoint returns the point input should be aimed at: left of center,
// vertically centered, which leads the sprite in its usual travel
// direction.
func (d Detection) AimPoint() image.Point {
	return image.Pt(d.Box.Min.X+d.Box.Dx()/4, d.Box.Min.Y+d.Box.Dy()/2)
}

// Context carries per-tick hints from the lock-on layer down to the
// detectors. All fields are optional.
type Context struct {
	// Reference is the last trusted bounding box, used by region-gated
	// detectors. Zero rectangle when no lock exists.
	Reference image.Rectangle

	// Signature is the committed hue signature, when one exists.
	Signature []float32

	// Engaged reports whether a load/fire phase is active. Several
	// filters loosen during engagement to tolerate occlusion by the
	// attack animation.
	Engaged bool
}

// Detector is the interface all candidate detectors implement.
// Detect returns (nil, nil) when the frame yields no candidate;
// errors are reserved for broken inputs and backend failures.
type Detector interface {
	Name() string
	Detect(frame gocv.Mat, ctx Context) (*Detection, error)
	Close() error
}

// Mode selects which detector arrangement drives the engine. It is
// chosen once at startup.
type Mode int

const (
	ModeTemplate Mode = iota
	ModeMotion
	ModeColor
	ModeHybrid // tracker-led with color-search recovery
	ModeModel
)

// String returns the mode name used in config files and logs.
func (m Mode) String() string {
	switch m {
	case ModeTemplate:
		return "template"
	case ModeMotion:
		return "motion"
	case ModeColor:
		return "color"
	case ModeHybrid:
		return "hybrid"
	case ModeModel:
		return "model"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "template":
		return ModeTemplate, nil
	case "motion":
		return ModeMotion, nil
	case "color":
		return ModeColor, nil
	case "hybrid":
		return ModeHybrid, nil
	case "model":
		return ModeModel, nil
	default:
		return 0, fmt.Errorf("detect: unknown mode %q", s)
	}
}

// Config holds the shared detector tuning knobs.
type Config struct {
	// TopIgnorePx rejects any candidate whose box top falls within this
	// many pixels of the capture top, where UI chrome lives.
	TopIgnorePx int

	// NominalSize is the expected target edge length in pixels, used to
	// scale area-based confidences.
	NominalSize int

	// MinBoxPx suppresses single-pixel noise: candidates narrower or
	// shorter than this are dropped by motion and color segmentation.
	MinBoxPx int

	// Template matching.
	TemplateDir    string
	Scales         []float64
	TemplateScore  float64 // minimum accepted correlation
	SquaredDiff    bool    // use the distance metric and invert scores

	// Motion differencing.
	BlurKernelPx  int
	SoftThreshold float32
	HardThreshold float32
	MinMotionArea float64

	// Color segmentation. Hue ranges are fixed (wrapped red); these gate
	// the mask.
	MinColorArea  float64
	SaturationMin float64
	ValueMin      float64

	// Visual tracker.
	TrackerMaxFailures int

	// Learned model.
	ModelPath     string
	ModelConfig   string
	ModelClasses  string // newline-separated class names file
	ModelClass    string // class accepted as the target
	ModelScore    float64
	ModelInputPx  int
	MinModelW     int
	MinModelH     int
	MaxModelH     int
	AspectIdle    float64 // width/height ceiling outside engagement
	AspectEngaged float64 // looser ceiling during load/fire
}

// DefaultConfig returns the tuning used against the production capture
// region.
func DefaultConfig() Config {
	return Config{
		TopIgnorePx:        90,
		NominalSize:        60,
		MinBoxPx:           20,
		Scales:             []float64{0.8, 0.9, 1.0, 1.1, 1.2},
		TemplateScore:      0.45,
		BlurKernelPx:       5,
		SoftThreshold:      25,
		HardThreshold:      50,
		MinMotionArea:      500,
		MinColorArea:       300,
		SaturationMin:      120,
		ValueMin:           70,
		TrackerMaxFailures: 3,
		ModelScore:         0.5,
		ModelInputPx:       416,
		MinModelW:          40,
		MinModelH:          25,
		MaxModelH:          200,
		AspectIdle:         2.5,
		AspectEngaged:      3.0,
	}
}

// rejectTopBand reports whether a candidate box starts inside the
// ignored top band.
func rejectTopBand(box image.Rectangle, topIgnorePx int) bool {
	return box.Min.Y < topIgnorePx
}

// areaConfidence scales a contour area against the expected target
// footprint into a 0-1 confidence.
func areaConfidence(area float64, nominalSize int) float64 {
	footprint := float64(nominalSize * nominalSize)
	if footprint <= 0 {
		return 0
	}
	return math.Min(1, area/footprint)
}

// HueSignature computes a normalized 180-bin hue histogram of the box
// region, the color fingerprint stored in a committed profile. Returns
// nil when the box does not intersect the frame.
func HueSignature(frame gocv.Mat, box image.Rectangle) []float32 {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	roi := box.Intersect(bounds)
	if roi.Empty() {
		return nil
	}

	region := frame.Region(roi)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)

	hist := gocv.NewMat()
	defer hist.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.CalcHist([]gocv.Mat{hsv}, []int{0}, mask, &hist, []int{180}, []float64{0, 180}, false)
	gocv.Normalize(hist, &hist, 0, 1, gocv.NormMinMax)

	sig := make([]float32, hist.Rows())
	for i := 0; i < hist.Rows(); i++ {
		sig[i] = hist.GetFloatAt(i, 0)
	}
	return sig
}
