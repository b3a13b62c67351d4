package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MotionDetector segments moving regions by differencing consecutive
// grayscale frames. It keeps the previous frame as its only state.
type MotionDetector struct {
	cfg      Config
	prevGray gocv.Mat
	hasPrev  bool
	kernel   gocv.Mat
}

// NewMotion creates a motion-differencing detector.
func NewMotion(cfg Config) *MotionDetector {
	return &MotionDetector{
		cfg:    cfg,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

func (d *MotionDetector) Name() string { return "motion" }

// Detect diffs the frame against the previous one and returns the most
// plausible moving region. The first frame only primes the buffer.
func (d *MotionDetector) Detect(frame gocv.Mat, ctx Context) (*Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	gray := gocv.NewMat()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	if !d.hasPrev {
		d.prevGray = gray
		d.hasPrev = true
		return nil, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, d.prevGray, &diff)

	d.prevGray.Close()
	d.prevGray = gray

	k := d.cfg.BlurKernelPx
	if k < 3 {
		k = 3
	}
	if k%2 == 0 {
		k++
	}
	gocv.GaussianBlur(diff, &diff, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	// A hard threshold isolates the fast-moving sprite body; the soft
	// one catches its fringes. OR-combining keeps both.
	hard := gocv.NewMat()
	defer hard.Close()
	soft := gocv.NewMat()
	defer soft.Close()
	gocv.Threshold(diff, &hard, d.cfg.HardThreshold, 255, gocv.ThresholdBinary)
	gocv.Threshold(diff, &soft, d.cfg.SoftThreshold, 255, gocv.ThresholdBinary)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.BitwiseOr(hard, soft, &mask)

	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, d.kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, d.kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	// Full minimum first, then the occlusion-tolerant fallback tiers.
	for _, frac := range []float64{1.0, 0.25, 0.20} {
		floor := d.cfg.MinMotionArea * frac
		bestArea := 0.0
		var bestBox image.Rectangle
		for i := 0; i < contours.Size(); i++ {
			c := contours.At(i)
			area := gocv.ContourArea(c)
			if area < floor || area <= bestArea {
				continue
			}
			box := gocv.BoundingRect(c)
			if box.Dx() < d.cfg.MinBoxPx || box.Dy() < d.cfg.MinBoxPx {
				continue
			}
			if rejectTopBand(box, d.cfg.TopIgnorePx) {
				continue
			}
			bestArea = area
			bestBox = box
		}
		if bestArea > 0 {
			return &Detection{
				Box:        bestBox,
				Confidence: areaConfidence(bestArea, d.cfg.NominalSize) * frac,
			}, nil
		}
	}
	return nil, nil
}

// Reset drops the previous-frame buffer, forcing a re-prime.
func (d *MotionDetector) Reset() {
	if d.hasPrev {
		d.prevGray.Close()
		d.hasPrev = false
	}
}

// Close releases the detector's Mats.
func (d *MotionDetector) Close() error {
	d.Reset()
	d.kernel.Close()
	return nil
}
