package detect

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// TemplateDetector correlates a set of reference images against the
// frame at several scales and keeps the single best-scoring location.
type TemplateDetector struct {
	cfg       Config
	templates []gocv.Mat // grayscale
	names     []string

	adopted    gocv.Mat // live patch captured during recovery
	hasAdopted bool
}

// NewTemplate loads every image file in cfg.TemplateDir as a grayscale
// reference template. A detector with zero templates is valid and
// simply never produces a candidate.
func NewTemplate(cfg Config) (*TemplateDetector, error) {
	d := &TemplateDetector{cfg: cfg}
	if cfg.TemplateDir == "" {
		return d, nil
	}

	entries, err := os.ReadDir(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("detect: read template dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".bmp":
		default:
			continue
		}
		m := gocv.IMRead(filepath.Join(cfg.TemplateDir, e.Name()), gocv.IMReadGrayScale)
		if m.Empty() {
			m.Close()
			continue
		}
		d.templates = append(d.templates, m)
		d.names = append(d.names, e.Name())
	}
	return d, nil
}

func (d *TemplateDetector) Name() string { return "template" }

// TemplateCount reports how many reference images are loaded.
func (d *TemplateDetector) TemplateCount() int { return len(d.templates) }

// Adopt captures the region under box as a live template, replacing any
// previously adopted patch. The reference images stay loaded; the patch
// just tracks the target's current appearance between recoveries.
func (d *TemplateDetector) Adopt(frame gocv.Mat, box image.Rectangle) error {
	if frame.Empty() {
		return fmt.Errorf("detect: empty frame")
	}
	box = box.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if box.Dx() < 8 || box.Dy() < 8 {
		return fmt.Errorf("detect: adopt region too small: %v", box)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	region := gray.Region(box)
	patch := region.Clone()
	region.Close()

	if d.hasAdopted {
		d.adopted.Close()
	}
	d.adopted = patch
	d.hasAdopted = true
	return nil
}

// Detect runs every template at every configured scale and returns the
// globally best match, or nil when nothing clears the score floor.
func (d *TemplateDetector) Detect(frame gocv.Mat, ctx Context) (*Detection, error) {
	if len(d.templates) == 0 && !d.hasAdopted {
		return nil, nil
	}
	if frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	method := gocv.TmCcoeffNormed
	if d.cfg.SquaredDiff {
		method = gocv.TmSqdiffNormed
	}

	best := -1.0
	var bestBox image.Rectangle

	scales := d.cfg.Scales
	if len(scales) == 0 {
		scales = []float64{1.0}
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	pool := d.templates
	if d.hasAdopted {
		pool = append(append([]gocv.Mat(nil), d.templates...), d.adopted)
	}

	for _, tmpl := range pool {
		for _, scale := range scales {
			w := int(float64(tmpl.Cols()) * scale)
			h := int(float64(tmpl.Rows()) * scale)
			if w < 8 || h < 8 || w >= gray.Cols() || h >= gray.Rows() {
				continue
			}

			scaled := gocv.NewMat()
			gocv.Resize(tmpl, &scaled, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)

			gocv.MatchTemplate(gray, scaled, &result, method, mask)
			minVal, maxVal, minLoc, maxLoc := gocv.MinMaxLoc(result)
			scaled.Close()

			// Distance metrics score best at the minimum; invert so
			// every method compares on the same higher-is-better axis.
			score := float64(maxVal)
			loc := maxLoc
			if d.cfg.SquaredDiff {
				score = 1 - float64(minVal)
				loc = minLoc
			}

			if score > best {
				best = score
				bestBox = image.Rect(loc.X, loc.Y, loc.X+w, loc.Y+h)
			}
		}
	}

	if best < d.cfg.TemplateScore {
		return nil, nil
	}
	if rejectTopBand(bestBox, d.cfg.TopIgnorePx) {
		return nil, nil
	}
	return &Detection{Box: bestBox, Confidence: clamp01(best)}, nil
}

// Close releases the loaded template Mats.
func (d *TemplateDetector) Close() error {
	for i := range d.templates {
		d.templates[i].Close()
	}
	d.templates = nil
	if d.hasAdopted {
		d.adopted.Close()
		d.hasAdopted = false
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
