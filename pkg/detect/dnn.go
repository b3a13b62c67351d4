package detect

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ModelDetector runs a trained object-detection network and filters
// its output down to the one plausible target candidate.
type ModelDetector struct {
	cfg        Config
	net        gocv.Net
	classNames []string
	classID    int
	mu         sync.Mutex // protects inference
}

// NewModel loads the network and class list. The target class must
// appear in the class file.
func NewModel(cfg Config) (*ModelDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("detect: model file: %w", err)
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ModelConfig)
	if net.Empty() {
		return nil, fmt.Errorf("detect: failed to load network from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	d := &ModelDetector{cfg: cfg, net: net, classID: -1}

	if cfg.ModelClasses != "" {
		raw, err := os.ReadFile(cfg.ModelClasses)
		if err != nil {
			net.Close()
			return nil, fmt.Errorf("detect: read class names: %w", err)
		}
		d.classNames = strings.Split(strings.TrimSpace(string(raw)), "\n")
	}
	for i, name := range d.classNames {
		if strings.TrimSpace(name) == cfg.ModelClass {
			d.classID = i
		}
	}
	if cfg.ModelClass != "" && d.classID < 0 {
		net.Close()
		return nil, fmt.Errorf("detect: class %q not in %s", cfg.ModelClass, cfg.ModelClasses)
	}

	return d, nil
}

func (d *ModelDetector) Name() string { return "model" }

// Detect runs one forward pass and returns the highest-confidence
// candidate of the target class that survives the shape filters.
func (d *ModelDetector) Detect(frame gocv.Mat, ctx Context) (*Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	inputPx := d.cfg.ModelInputPx
	if inputPx <= 0 {
		inputPx = 416
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(inputPx, inputPx),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	frameW := float32(frame.Cols())
	frameH := float32(frame.Rows())

	aspectCeiling := d.cfg.AspectIdle
	if ctx.Engaged {
		aspectCeiling = d.cfg.AspectEngaged
	}

	var best *Detection
	for i := 0; i < output.Rows(); i++ {
		row := output.RowRange(i, i+1)
		data := row.Clone()
		scores := data.ColRange(5, data.Cols())
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(scores)
		confidence := float64(maxVal)
		classID := maxLoc.X

		accept := confidence >= d.cfg.ModelScore &&
			(d.classID < 0 || classID == d.classID)
		if accept {
			cx := data.GetFloatAt(0, 0) * frameW
			cy := data.GetFloatAt(0, 1) * frameH
			w := data.GetFloatAt(0, 2) * frameW
			h := data.GetFloatAt(0, 3) * frameH
			box := image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))

			if d.plausible(box, aspectCeiling) && (best == nil || confidence > best.Confidence) {
				best = &Detection{Box: box, Confidence: confidence}
			}
		}

		scores.Close()
		data.Close()
		row.Close()
	}
	return best, nil
}

// plausible applies the shape filters that reject decorative false
// positives: minimum footprint, a height ceiling for tall scenery, and
// an aspect-ratio ceiling that loosens during engagement.
func (d *ModelDetector) plausible(box image.Rectangle, aspectCeiling float64) bool {
	w, h := box.Dx(), box.Dy()
	if w < d.cfg.MinModelW || h < d.cfg.MinModelH {
		return false
	}
	if d.cfg.MaxModelH > 0 && h > d.cfg.MaxModelH {
		return false
	}
	if h > 0 && float64(w)/float64(h) > aspectCeiling {
		return false
	}
	return !rejectTopBand(box, d.cfg.TopIgnorePx)
}

// Close releases the network.
func (d *ModelDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
