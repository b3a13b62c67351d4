package input

import (
	"github.com/go-vgo/robotgo"

	"github.com/skeetbot/skeet/internal/log"
)

// NativeSink injects events through the OS input APIs.
type NativeSink struct{}

// NewNativeSink returns the OS-level sink.
func NewNativeSink() *NativeSink { return &NativeSink{} }

func (s *NativeSink) MoveTo(x, y int) {
	robotgo.Move(x, y)
}

func (s *NativeSink) ButtonDown(button string) {
	if err := robotgo.Toggle(button); err != nil {
		log.Warn("button down failed", "button", button, "error", err)
	}
}

func (s *NativeSink) ButtonUp(button string) {
	if err := robotgo.Toggle(button, "up"); err != nil {
		log.Warn("button up failed", "button", button, "error", err)
	}
}

func (s *NativeSink) KeyDown(key string) {
	if err := robotgo.KeyToggle(key, "down"); err != nil {
		log.Warn("key down failed", "key", key, "error", err)
	}
}

func (s *NativeSink) KeyUp(key string) {
	if err := robotgo.KeyToggle(key, "up"); err != nil {
		log.Warn("key up failed", "key", key, "error", err)
	}
}

func (s *NativeSink) Tap(key string) {
	if err := robotgo.KeyTap(key); err != nil {
		log.Warn("key tap failed", "key", key, "error", err)
	}
}

func (s *NativeSink) Scroll(steps int) {
	robotgo.Scroll(0, steps)
}

func (s *NativeSink) Close() error { return nil }

// Location returns the current pointer position. Used to mask the
// cursor region out of captures during the fire phase.
func (s *NativeSink) Location() (int, int) {
	return robotgo.Location()
}
