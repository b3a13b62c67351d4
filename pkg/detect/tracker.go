package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// trackerConfidence is reported for tracker hits. Discriminative
// trackers expose no usable score, so validation downstream leans on
// the profile instead.
const trackerConfidence = 0.75

// VisualTracker wraps a stateful model-free tracker behind an explicit
// init/update/reset lifecycle. After MaxFailures consecutive failed
// updates it deactivates itself and must be re-initialized from a
// fresh detection.
type VisualTracker struct {
	cfg      Config
	impl     gocv.Tracker
	kind     string
	active   bool
	failures int
}

// NewVisualTracker creates an inactive tracker. Call Init with a
// trusted bounding box before the first Detect.
func NewVisualTracker(cfg Config) *VisualTracker {
	return &VisualTracker{cfg: cfg}
}

func (t *VisualTracker) Name() string { return "tracker" }

// Init binds the tracker model to the region at box. CSRT is tried
// first for accuracy; KCF is the faster fallback when CSRT refuses
// the region.
func (t *VisualTracker) Init(frame gocv.Mat, box image.Rectangle) error {
	t.Reset()
	if frame.Empty() || box.Empty() {
		return fmt.Errorf("detect: tracker init needs a frame and box")
	}

	csrt := contrib.NewTrackerCSRT()
	if csrt.Init(frame, box) {
		t.impl = csrt
		t.kind = "csrt"
		t.active = true
		return nil
	}
	csrt.Close()

	kcf := contrib.NewTrackerKCF()
	if kcf.Init(frame, box) {
		t.impl = kcf
		t.kind = "kcf"
		t.active = true
		return nil
	}
	kcf.Close()

	return fmt.Errorf("detect: no tracker backend accepted region %v", box)
}

// Active reports whether the tracker currently holds a model.
func (t *VisualTracker) Active() bool { return t.active }

// Kind returns the backend in use, for logs.
func (t *VisualTracker) Kind() string { return t.kind }

// Detect advances the tracker one frame. A failed update counts toward
// the failure ceiling; hitting the ceiling deactivates the tracker.
func (t *VisualTracker) Detect(frame gocv.Mat, ctx Context) (*Detection, error) {
	if !t.active {
		return nil, nil
	}
	if frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	box, ok := t.impl.Update(frame)
	if !ok || box.Empty() {
		t.failures++
		if t.failures >= t.cfg.TrackerMaxFailures {
			t.Reset()
		}
		return nil, nil
	}

	t.failures = 0
	if rejectTopBand(box, t.cfg.TopIgnorePx) {
		return nil, nil
	}
	return &Detection{Box: box, Confidence: trackerConfidence}, nil
}

// Reset releases the backend model and returns to the inactive state.
func (t *VisualTracker) Reset() {
	if t.impl != nil {
		t.impl.Close()
		t.impl = nil
	}
	t.active = false
	t.failures = 0
	t.kind = ""
}

// Close releases tracker resources.
func (t *VisualTracker) Close() error {
	t.Reset()
	return nil
}
