package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ColorDetector segments the target's dominant red coloring in HSV
// space. Red straddles the hue wrap, so two ranges are masked and
// combined.
type ColorDetector struct {
	cfg    Config
	kernel gocv.Mat
}

// NewColor creates a color-segmentation detector.
func NewColor(cfg Config) *ColorDetector {
	return &ColorDetector{
		cfg:    cfg,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5)),
	}
}

func (d *ColorDetector) Name() string { return "color" }

// Detect returns the largest red blob above the area and size floors.
func (d *ColorDetector) Detect(frame gocv.Mat, ctx Context) (*Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}
	return d.detectWithin(frame, image.Rect(0, 0, frame.Cols(), frame.Rows()))
}

// DetectAround restricts segmentation to a window around the given
// center, the wide-area recovery search used when the tracker loses
// the target.
func (d *ColorDetector) DetectAround(frame gocv.Mat, center image.Point, radius int) (*Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}
	window := image.Rect(center.X-radius, center.Y-radius, center.X+radius, center.Y+radius)
	return d.detectWithin(frame, window)
}

func (d *ColorDetector) detectWithin(frame gocv.Mat, window image.Rectangle) (*Detection, error) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	window = window.Intersect(bounds)
	if window.Empty() {
		return nil, nil
	}

	region := frame.Region(window)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)

	sMin := d.cfg.SaturationMin
	vMin := d.cfg.ValueMin

	lowMask := gocv.NewMat()
	defer lowMask.Close()
	highMask := gocv.NewMat()
	defer highMask.Close()

	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, sMin, vMin, 0),
		gocv.NewScalar(10, 255, 255, 0), &lowMask)
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(160, sMin, vMin, 0),
		gocv.NewScalar(180, 255, 255, 0), &highMask)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.BitwiseOr(lowMask, highMask, &mask)

	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, d.kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, d.kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	bestArea := 0.0
	var bestBox image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < d.cfg.MinColorArea || area <= bestArea {
			continue
		}
		box := gocv.BoundingRect(c)
		if box.Dx() < d.cfg.MinBoxPx || box.Dy() < d.cfg.MinBoxPx {
			continue
		}
		// Contour coordinates are window-relative.
		box = box.Add(window.Min)
		if rejectTopBand(box, d.cfg.TopIgnorePx) {
			continue
		}
		bestArea = area
		bestBox = box
	}

	if bestArea == 0 {
		return nil, nil
	}
	return &Detection{
		Box:        bestBox,
		Confidence: areaConfidence(bestArea, d.cfg.NominalSize),
	}, nil
}

// Close releases the detector's Mats.
func (d *ColorDetector) Close() error {
	d.kernel.Close()
	return nil
}
