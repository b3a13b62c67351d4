package notify

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(48000)

// AudioSink plays a short tone per event so the operator hears state
// changes without watching the overlay.
type AudioSink struct {
	mixer *beep.Mixer
}

// NewAudioSink initializes the speaker. Fails when no audio device is
// available; callers should treat that as cues-off, not fatal.
func NewAudioSink() (*AudioSink, error) {
	a := &AudioSink{mixer: &beep.Mixer{}}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return nil, err
	}
	speaker.Play(a.mixer)
	return a, nil
}

func (a *AudioSink) Notify(ev Event) {
	freq, dur := cueFor(ev.Type)
	if freq == 0 {
		return
	}
	speaker.Lock()
	a.mixer.Add(newTone(freq, dur))
	speaker.Unlock()
}

// cueFor maps event types to tones. Rising pitches are good news.
func cueFor(t Type) (float64, time.Duration) {
	switch t {
	case Started:
		return 660, 120 * time.Millisecond
	case Stopped:
		return 220, 200 * time.Millisecond
	case LockAcquired:
		return 880, 150 * time.Millisecond
	case LockLost:
		return 330, 250 * time.Millisecond
	case AttackStarted:
		return 1040, 80 * time.Millisecond
	case AttackCompleted:
		return 520, 80 * time.Millisecond
	default:
		return 0, 0
	}
}

// tone is a sine burst with a linear fade-out to avoid clicks.
type tone struct {
	freq     float64
	phase    float64
	duration int
	position int
}

func newTone(freq float64, d time.Duration) beep.Streamer {
	return &tone{freq: freq, duration: sampleRate.N(d)}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.duration {
			return i, false
		}
		env := 1.0 - float64(t.position)/float64(t.duration)
		val := math.Sin(2*math.Pi*t.phase) * 0.3 * env
		samples[i][0] = val
		samples[i][1] = val

		t.phase += t.freq / float64(sampleRate)
		t.phase -= math.Floor(t.phase)
		t.position++
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }
