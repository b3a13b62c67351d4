// Package hotkey runs the global hotkey listener on its own
// goroutine. Hotkeys only flip shared control flags; the tick loop
// reads them at the top of each iteration and owns every consequence.
package hotkey

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"

	"github.com/skeetbot/skeet/internal/log"
)

// Flags is the shared control state. All access is atomic.
type Flags struct {
	run    atomic.Bool
	paused atomic.Bool
}

// Running reports whether the engine should be driving input.
func (f *Flags) Running() bool { return f.run.Load() }

// Paused reports whether ticks should be skipped while staying armed.
func (f *Flags) Paused() bool { return f.paused.Load() }

// SetRunning flips the run flag directly, for tray menu and shutdown
// paths that bypass the keyboard.
func (f *Flags) SetRunning(v bool) { f.run.Store(v) }

// SetPaused flips the pause flag directly.
func (f *Flags) SetPaused(v bool) { f.paused.Store(v) }

// Config names the control keys.
type Config struct {
	StartKey types.VKCode
	StopKey  types.VKCode
	PauseKey types.VKCode

	// Debounce swallows key repeats and double taps.
	Debounce time.Duration
}

// DefaultConfig returns the production bindings.
func DefaultConfig() Config {
	return Config{
		StartKey: types.VK_F1,
		StopKey:  types.VK_F2,
		PauseKey: types.VK_F3,
		Debounce: 500 * time.Millisecond,
	}
}

// ParseKey resolves a config key name like "f1" to a virtual key
// code.
func ParseKey(name string) (types.VKCode, error) {
	switch strings.ToLower(name) {
	case "f1":
		return types.VK_F1, nil
	case "f2":
		return types.VK_F2, nil
	case "f3":
		return types.VK_F3, nil
	case "f4":
		return types.VK_F4, nil
	case "f5":
		return types.VK_F5, nil
	case "f6":
		return types.VK_F6, nil
	case "f7":
		return types.VK_F7, nil
	case "f8":
		return types.VK_F8, nil
	case "f9":
		return types.VK_F9, nil
	case "f10":
		return types.VK_F10, nil
	case "f11":
		return types.VK_F11, nil
	case "f12":
		return types.VK_F12, nil
	}
	return 0, fmt.Errorf("unknown hotkey %q", name)
}

// Listener owns the keyboard hook.
type Listener struct {
	cfg   Config
	flags *Flags

	lastFired map[types.VKCode]time.Time
	events    chan types.KeyboardEvent
	stop      chan struct{}
}

// Listen installs the hook and starts dispatching.
func Listen(cfg Config) (*Listener, error) {
	l := &Listener{
		cfg:       cfg,
		flags:     &Flags{},
		lastFired: make(map[types.VKCode]time.Time),
		events:    make(chan types.KeyboardEvent, 100),
		stop:      make(chan struct{}),
	}
	if err := keyboard.Install(nil, l.events); err != nil {
		return nil, fmt.Errorf("install keyboard hook: %w", err)
	}
	go l.loop()
	return l, nil
}

// Flags returns the shared control flags.
func (l *Listener) Flags() *Flags { return l.flags }

func (l *Listener) loop() {
	for {
		select {
		case <-l.stop:
			return
		case ev := <-l.events:
			l.handle(ev, time.Now())
		}
	}
}

// handle applies one keyboard event to the flags. Split out so the
// debounce and flag semantics are testable without a real hook.
func (l *Listener) handle(ev types.KeyboardEvent, now time.Time) {
	if ev.Message != types.WM_KEYDOWN && ev.Message != types.WM_SYSKEYDOWN {
		return
	}
	switch ev.VKCode {
	case l.cfg.StartKey, l.cfg.StopKey, l.cfg.PauseKey:
	default:
		return
	}
	if last, ok := l.lastFired[ev.VKCode]; ok && now.Sub(last) < l.cfg.Debounce {
		return
	}
	l.lastFired[ev.VKCode] = now

	switch ev.VKCode {
	case l.cfg.StartKey:
		l.flags.run.Store(true)
		l.flags.paused.Store(false)
		log.Info("hotkey: start")
	case l.cfg.StopKey:
		l.flags.run.Store(false)
		l.flags.paused.Store(false)
		log.Info("hotkey: stop")
	case l.cfg.PauseKey:
		paused := !l.flags.paused.Load()
		l.flags.paused.Store(paused)
		log.Info("hotkey: pause", "paused", paused)
	}
}

// Close uninstalls the hook and stops dispatching.
func (l *Listener) Close() error {
	close(l.stop)
	return keyboard.Uninstall()
}
