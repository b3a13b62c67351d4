// Package input delivers pointer and key events to the game. Sinks are
// best-effort by contract: failures are logged and swallowed, the
// caller's bookkeeping stays optimistic and a periodic release sweep
// bounds any drift.
package input

// Sink accepts low-level input events. Implementations must be safe
// for concurrent use; the tick loop and the playback goroutine both
// write.
type Sink interface {
	MoveTo(x, y int)
	ButtonDown(button string)
	ButtonUp(button string)
	KeyDown(key string)
	KeyUp(key string)
	Tap(key string)
	// Scroll moves the wheel; positive steps scroll up.
	Scroll(steps int)
	Close() error
}

// Buttons understood by every sink.
const (
	ButtonLeft  = "left"
	ButtonRight = "right"
)
