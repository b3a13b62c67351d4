// Package hub fans bot telemetry out to dashboard websocket clients
// using a channel-based broadcast loop. Slow clients are dropped
// rather than ever backing up the tick loop.
package hub

// Kind tags what a message carries so clients can route it.
type Kind int

const (
	// KindStatus is a JSON per-tick status snapshot.
	KindStatus Kind = iota
	// KindFrame is a JPEG-encoded annotated capture frame.
	KindFrame
	// KindStats is a JSON session counter snapshot.
	KindStats
	// KindEvent is a JSON lifecycle event.
	KindEvent
)

// Message is one broadcast payload.
type Message struct {
	Kind Kind
	Data []byte
}

// Binary reports whether the payload goes out as a binary websocket
// frame.
func (m Message) Binary() bool { return m.Kind == KindFrame }
