// Package notify fans lifecycle events out to external consumers:
// chat webhooks, websocket listeners, audio cues. Delivery is
// fire-and-forget on a background goroutine; the tick loop only ever
// pays for a channel send.
package notify

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/skeetbot/skeet/internal/log"
)

// Type identifies a lifecycle event.
type Type string

const (
	Started         Type = "started"
	Stopped         Type = "stopped"
	LockAcquired    Type = "lock_acquired"
	LockLost        Type = "lock_lost"
	AttackStarted   Type = "attack_started"
	AttackCompleted Type = "attack_completed"
)

// ParseType maps a configured event name to its type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Started, Stopped, LockAcquired, LockLost, AttackStarted, AttackCompleted:
		return t, nil
	}
	return "", fmt.Errorf("notify: unknown event type %q", s)
}

// Box is a wire-friendly bounding box.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// BoxOf converts a rectangle for the wire.
func BoxOf(r image.Rectangle) *Box {
	return &Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Event is one lifecycle notification with a minimal payload.
type Event struct {
	Type       Type      `json:"type"`
	At         time.Time `json:"at"`
	Session    string    `json:"session,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Box        *Box      `json:"box,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Sink receives events in emit order. Notify may block; it runs on
// the dispatcher goroutine, never on the tick loop.
type Sink interface {
	Notify(ev Event)
}

// Notifier rate-limits per event type and dispatches asynchronously.
type Notifier struct {
	session string
	minGap  time.Duration

	mu      sync.Mutex
	last    map[Type]time.Time
	enabled map[Type]bool // nil delivers every type

	ch   chan Event
	done chan struct{}
}

// New starts a notifier delivering to sinks. minGap is the per-type
// rate limit; 0 disables limiting.
func New(session string, minGap time.Duration, sinks ...Sink) *Notifier {
	n := &Notifier{
		session: session,
		minGap:  minGap,
		last:    make(map[Type]time.Time),
		ch:      make(chan Event, 64),
		done:    make(chan struct{}),
	}
	go n.dispatch(sinks)
	return n
}

// EnableOnly restricts delivery to the named event types. Without a
// call, every type is delivered.
func (n *Notifier) EnableOnly(types ...Type) {
	set := make(map[Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	n.mu.Lock()
	n.enabled = set
	n.mu.Unlock()
}

// Emit queues an event. Disabled types, events inside the per-type
// rate window, and events arriving faster than sinks can drain are
// dropped.
func (n *Notifier) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.Session = n.session

	n.mu.Lock()
	if n.enabled != nil && !n.enabled[ev.Type] {
		n.mu.Unlock()
		return
	}
	if n.minGap > 0 {
		if last, ok := n.last[ev.Type]; ok && ev.At.Sub(last) < n.minGap {
			n.mu.Unlock()
			return
		}
	}
	n.last[ev.Type] = ev.At
	n.mu.Unlock()

	select {
	case n.ch <- ev:
	default:
		log.Warn("notification dropped, queue full", "type", ev.Type)
	}
}

func (n *Notifier) dispatch(sinks []Sink) {
	defer close(n.done)
	for ev := range n.ch {
		for _, s := range sinks {
			s.Notify(ev)
		}
	}
}

// Close drains queued events and stops the dispatcher.
func (n *Notifier) Close() {
	close(n.ch)
	<-n.done
}
