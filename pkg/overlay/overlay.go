// Package overlay publishes the per-tick status snapshot to rendering
// surfaces: the web dashboard, the terminal HUD, or nothing. Sinks
// render asynchronously and never block the tick loop; render errors
// are theirs to log and swallow.
package overlay

import "time"

// Box is a wire-friendly bounding box.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Status is one tick's view of the bot, published at tick cadence.
type Status struct {
	At       time.Time `json:"at"`
	Running  bool      `json:"running"`
	Paused   bool      `json:"paused"`
	Search   bool      `json:"search"`
	Detector string    `json:"detector"`
	LockMode string    `json:"lock_mode"`
	Phase    string    `json:"phase"`

	Confidence float64 `json:"confidence"`
	Synthetic  bool    `json:"synthetic"`
	Box        *Box    `json:"box,omitempty"`
	AimX       int     `json:"aim_x"`
	AimY       int     `json:"aim_y"`
	VelX       float64 `json:"vel_x"`
	VelY       float64 `json:"vel_y"`
	Rejections int     `json:"rejections"`
	Steering   string  `json:"steering"`
}

// Sink receives status snapshots. Publish must return quickly.
type Sink interface {
	Publish(st Status)
}

// Null discards everything.
type Null struct{}

func (Null) Publish(Status) {}

// Multi fans one snapshot out to several sinks.
type Multi []Sink

func (m Multi) Publish(st Status) {
	for _, s := range m {
		s.Publish(st)
	}
}
