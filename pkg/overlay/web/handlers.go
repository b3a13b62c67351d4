package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/skeetbot/skeet/pkg/hub"
	"github.com/skeetbot/skeet/pkg/stats"
)

// handleStatus returns the latest tick snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return c.JSON(s.status)
}

// handleStats returns the session counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	s.statsMu.RLock()
	fn := s.statsFn
	s.statsMu.RUnlock()

	if fn == nil {
		return c.JSON(stats.Snapshot{})
	}
	return c.JSON(fn())
}

// handleEvents returns the buffered lifecycle events.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// handleStatusWS streams status snapshots, seeding the client with
// the current one.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()
	if !st.At.IsZero() {
		c.WriteJSON(st)
	}

	hub.NewClient(s.statusHub, c).Run()
}

// handleFramesWS streams annotated JPEG frames.
func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.NewClient(s.frameHub, c).Run()
}

// handleEventsWS streams lifecycle events, seeding the client with
// recent history.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	s.eventsMu.RLock()
	for _, ev := range s.events {
		c.WriteJSON(ev)
	}
	s.eventsMu.RUnlock()

	hub.NewClient(s.eventHub, c).Run()
}
