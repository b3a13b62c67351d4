package replay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"

	"github.com/skeetbot/skeet/internal/log"
)

// Recorder captures a timeline from the physical keyboard through a
// low-level hook.
type Recorder struct{}

// NewRecorder returns an idle recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record blocks until escape is pressed or ctx is canceled, then
// returns the captured timeline terminated by an end marker. Offsets
// are relative to the first keystroke.
func (r *Recorder) Record(ctx context.Context) (Sequence, error) {
	events := make(chan types.KeyboardEvent, 100)
	if err := keyboard.Install(nil, events); err != nil {
		return nil, fmt.Errorf("install keyboard hook: %w", err)
	}
	defer keyboard.Uninstall()

	var (
		seq   Sequence
		start time.Time
		down  = map[string]bool{}
	)
	log.Info("recording: press escape to finish")

	for {
		select {
		case <-ctx.Done():
			return finish(seq, start)
		case ev := <-events:
			if ev.VKCode == types.VK_ESCAPE && ev.Message == types.WM_KEYDOWN {
				return finish(seq, start)
			}

			var kind Kind
			switch ev.Message {
			case types.WM_KEYDOWN, types.WM_SYSKEYDOWN:
				kind = KeyPress
			case types.WM_KEYUP, types.WM_SYSKEYUP:
				kind = KeyRelease
			default:
				continue
			}

			key := keyName(ev.VKCode)
			// Holding a key autorepeats WM_KEYDOWN; keep the first.
			if kind == KeyPress && down[key] {
				continue
			}
			down[key] = kind == KeyPress

			now := time.Now()
			if start.IsZero() {
				start = now
			}
			seq = append(seq, Event{
				OffsetMs: now.Sub(start).Milliseconds(),
				Kind:     kind,
				Key:      key,
			})
		}
	}
}

func finish(seq Sequence, start time.Time) (Sequence, error) {
	if len(seq) == 0 {
		return nil, ErrNoSequence
	}
	seq = append(seq, Event{
		OffsetMs: time.Since(start).Milliseconds(),
		Kind:     EndMarker,
	})
	log.Info("recording finished", "events", len(seq))
	return seq, nil
}

// keyName maps a virtual key code to the sink's key vocabulary.
func keyName(vk types.VKCode) string {
	name := strings.TrimPrefix(vk.String(), "VK_")
	if name == "RETURN" {
		return "enter"
	}
	return strings.ToLower(name)
}
