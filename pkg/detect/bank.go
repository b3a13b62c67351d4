package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Bank owns the detector set for the mode selected at startup and
// dispatches each frame to the right arm. The mode never changes at
// runtime, so there is no per-tick branching on strings anywhere else.
type Bank struct {
	mode     Mode
	template *TemplateDetector
	motion   *MotionDetector
	color    *ColorDetector
	tracker  *VisualTracker
	model    *ModelDetector
}

// NewBank constructs the detectors the mode requires. The color
// detector is always built: it doubles as the wide-area recovery
// search regardless of mode.
func NewBank(mode Mode, cfg Config) (*Bank, error) {
	b := &Bank{mode: mode, color: NewColor(cfg)}

	var err error
	switch mode {
	case ModeTemplate:
		b.template, err = NewTemplate(cfg)
		if err != nil {
			return nil, err
		}
		if b.template.TemplateCount() == 0 {
			return nil, fmt.Errorf("detect: template mode needs at least one reference image in %q", cfg.TemplateDir)
		}
	case ModeMotion:
		b.motion = NewMotion(cfg)
	case ModeColor:
		// color already built
	case ModeHybrid:
		b.motion = NewMotion(cfg)
		b.tracker = NewVisualTracker(cfg)
		b.template, err = NewTemplate(cfg)
		if err != nil {
			return nil, err
		}
	case ModeModel:
		b.model, err = NewModel(cfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("detect: unsupported mode %v", mode)
	}
	return b, nil
}

// Mode returns the bank's fixed mode.
func (b *Bank) Mode() Mode { return b.mode }

// Tracker returns the visual tracker, nil outside hybrid mode.
func (b *Bank) Tracker() *VisualTracker { return b.tracker }

// Detect runs the mode's detector arm on the frame.
func (b *Bank) Detect(frame gocv.Mat, ctx Context) (*Detection, error) {
	switch b.mode {
	case ModeTemplate:
		return b.template.Detect(frame, ctx)
	case ModeMotion:
		return b.motion.Detect(frame, ctx)
	case ModeColor:
		return b.color.Detect(frame, ctx)
	case ModeModel:
		return b.model.Detect(frame, ctx)
	case ModeHybrid:
		if b.tracker.Active() {
			return b.tracker.Detect(frame, ctx)
		}
		return b.motion.Detect(frame, ctx)
	default:
		return nil, fmt.Errorf("detect: unsupported mode %v", b.mode)
	}
}

// Recover runs the wide-area color search around a last known center,
// used when the tracker arm has lost its model.
func (b *Bank) Recover(frame gocv.Mat, center image.Point, radius int) (*Detection, error) {
	return b.color.DetectAround(frame, center, radius)
}

// BindTracker (re)initializes the tracker arm on a trusted box. A
// no-op outside hybrid mode.
func (b *Bank) BindTracker(frame gocv.Mat, box image.Rectangle) error {
	if b.tracker == nil {
		return nil
	}
	return b.tracker.Init(frame, box)
}

// AdoptTemplate refreshes the template arm with the target's current
// appearance, so matching after a recovery scores against what the
// target looks like now rather than the startup references.
func (b *Bank) AdoptTemplate(frame gocv.Mat, box image.Rectangle) error {
	if b.template == nil {
		return nil
	}
	return b.template.Adopt(frame, box)
}

// Close releases every detector the bank owns.
func (b *Bank) Close() error {
	if b.template != nil {
		b.template.Close()
	}
	if b.motion != nil {
		b.motion.Close()
	}
	if b.color != nil {
		b.color.Close()
	}
	if b.tracker != nil {
		b.tracker.Close()
	}
	if b.model != nil {
		b.model.Close()
	}
	return nil
}
