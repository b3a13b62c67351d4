// Package replay records and plays back timed key sequences. The
// attack input the cycle runs during load and fire is one of these
// sequences; playback happens on its own goroutine with sleep-based
// delays so the tick loop never waits on it.
package replay

import "errors"

// ErrNoSequence reports that no recorded sequence is available.
var ErrNoSequence = errors.New("replay: no sequence recorded")

// Kind discriminates timeline events.
type Kind string

const (
	KeyPress   Kind = "key_press"
	KeyRelease Kind = "key_release"
	EndMarker  Kind = "end"
)

// Event is one step of a recorded timeline, offset-stamped relative to
// the recording start.
type Event struct {
	OffsetMs int64  `json:"offset_ms"`
	Kind     Kind   `json:"kind"`
	Key      string `json:"key,omitempty"`
}

// Sequence is an ordered timeline. The last event should be an
// EndMarker; playback treats it as the sequence duration.
type Sequence []Event

// Duration returns the timeline length in milliseconds.
func (s Sequence) Duration() int64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].OffsetMs
}
