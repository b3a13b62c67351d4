package replay

import (
	"sync"
	"time"

	"github.com/skeetbot/skeet/internal/log"
)

// Keys is the slice of the input sink playback needs.
type Keys interface {
	KeyDown(key string)
	KeyUp(key string)
	Tap(key string)
}

// PlayerConfig tunes looped playback. The cooldown macro runs between
// loop iterations: commit, spam the interact key for the cooldown
// duration, commit again, short pause.
type PlayerConfig struct {
	CommitKey      string
	InteractKey    string
	InteractPeriod time.Duration
	MacroCooldown  time.Duration
	MacroPause     time.Duration
}

// DefaultPlayerConfig matches the cycle's production timing.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		CommitKey:      "1",
		InteractKey:    "e",
		InteractPeriod: 200 * time.Millisecond,
		MacroCooldown:  6 * time.Second,
		MacroPause:     500 * time.Millisecond,
	}
}

// Player replays a sequence on a background goroutine. Start and Stop
// are safe to call from any goroutine; Stop blocks until playback has
// fully wound down and released its keys.
type Player struct {
	cfg  PlayerConfig
	keys Keys

	mu      sync.Mutex
	seq     Sequence
	playing bool
	cancel  chan struct{}
	done    chan struct{}
}

// NewPlayer builds a stopped player for seq.
func NewPlayer(seq Sequence, keys Keys, cfg PlayerConfig) *Player {
	return &Player{cfg: cfg, keys: keys, seq: seq}
}

// SetSequence swaps the timeline used by the next Start.
func (p *Player) SetSequence(seq Sequence) {
	p.mu.Lock()
	p.seq = seq
	p.mu.Unlock()
}

// IsPlaying reports whether playback is running.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Start begins playback. With loop set, the sequence repeats with the
// cooldown macro between iterations until Stop. Starting while already
// playing is a no-op.
func (p *Player) Start(loop bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	if len(p.seq) == 0 {
		return ErrNoSequence
	}
	p.playing = true
	p.cancel = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.seq, loop, p.cancel, p.done)
	return nil
}

// Stop cancels playback and waits for the goroutine to exit. Held
// keys from a half-played sequence are released.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	close(cancel)
	<-done
}

func (p *Player) run(seq Sequence, loop bool, cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	held := map[string]bool{}
	defer func() {
		for key := range held {
			p.keys.KeyUp(key)
		}
	}()

	for {
		if !p.playOnce(seq, held, cancel) {
			return
		}
		if !loop {
			return
		}
		if !p.cooldownMacro(cancel) {
			return
		}
	}
}

// playOnce walks the timeline once. Returns false when canceled.
func (p *Player) playOnce(seq Sequence, held map[string]bool, cancel <-chan struct{}) bool {
	start := time.Now()
	for _, ev := range seq {
		if !sleepUntil(start.Add(time.Duration(ev.OffsetMs)*time.Millisecond), cancel) {
			return false
		}
		switch ev.Kind {
		case KeyPress:
			p.keys.KeyDown(ev.Key)
			held[ev.Key] = true
		case KeyRelease:
			p.keys.KeyUp(ev.Key)
			delete(held, ev.Key)
		case EndMarker:
			return true
		default:
			log.Warn("unknown replay event", "kind", ev.Kind)
		}
	}
	return true
}

// cooldownMacro bridges loop iterations. Returns false when canceled.
func (p *Player) cooldownMacro(cancel <-chan struct{}) bool {
	p.keys.Tap(p.cfg.CommitKey)

	deadline := time.Now().Add(p.cfg.MacroCooldown)
	for time.Now().Before(deadline) {
		if !sleepFor(p.cfg.InteractPeriod, cancel) {
			return false
		}
		p.keys.Tap(p.cfg.InteractKey)
	}

	p.keys.Tap(p.cfg.CommitKey)
	return sleepFor(p.cfg.MacroPause, cancel)
}

// sleepUntil waits for the deadline, returning false if canceled
// first. Past deadlines return immediately.
func sleepUntil(deadline time.Time, cancel <-chan struct{}) bool {
	d := time.Until(deadline)
	if d <= 0 {
		select {
		case <-cancel:
			return false
		default:
			return true
		}
	}
	return sleepFor(d, cancel)
}

func sleepFor(d time.Duration, cancel <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-cancel:
		return false
	case <-t.C:
		return true
	}
}
