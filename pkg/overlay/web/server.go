// Package web serves the real-time dashboard: live status, annotated
// frames and lifecycle events over websockets, plus a small JSON API.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/skeetbot/skeet/internal/log"
	"github.com/skeetbot/skeet/pkg/hub"
	"github.com/skeetbot/skeet/pkg/notify"
	"github.com/skeetbot/skeet/pkg/overlay"
	"github.com/skeetbot/skeet/pkg/stats"
)

// eventBufferSize bounds the replayable event history.
const eventBufferSize = 200

// Server is the dashboard server. It implements overlay.Sink for
// status and notify.Sink for lifecycle events.
type Server struct {
	app  *fiber.App
	port string

	statusMu sync.RWMutex
	status   overlay.Status

	eventsMu sync.RWMutex
	events   []notify.Event

	statsMu sync.RWMutex
	statsFn func() stats.Snapshot

	statusHub *hub.Hub
	frameHub  *hub.Hub
	eventHub  *hub.Hub
}

// NewServer builds the dashboard on port. staticDir holds the
// frontend assets; empty serves no static files.
func NewServer(port, staticDir string) *Server {
	s := &Server{
		port:      port,
		events:    make([]notify.Event, 0, eventBufferSize),
		statusHub: hub.New("status"),
		frameHub:  hub.New("frames"),
		eventHub:  hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "skeet dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	if staticDir != "" {
		app.Static("/", staticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/events", s.handleEvents)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the hubs and listens. Blocks.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.frameHub.Run()
	go s.eventHub.Run()

	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server on its own goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server failed", "error", err)
		}
	}()
}

// Publish stores the snapshot and pushes it to websocket clients.
func (s *Server) Publish(st overlay.Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(hub.KindStatus, st); err != nil {
		log.Warn("status broadcast failed", "error", err)
	}
}

// Notify buffers the event and pushes it to websocket clients.
func (s *Server) Notify(ev notify.Event) {
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > eventBufferSize {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	if err := s.eventHub.BroadcastJSON(hub.KindEvent, ev); err != nil {
		log.Warn("event broadcast failed", "error", err)
	}
}

// Frame pushes one JPEG-encoded annotated frame. Callers should skip
// encoding entirely while no client is connected.
func (s *Server) Frame(jpeg []byte) {
	s.frameHub.BroadcastFrame(jpeg)
}

// FrameClients reports how many clients watch the frame stream.
func (s *Server) FrameClients() int { return s.frameHub.ClientCount() }

// SetStatsSource installs the counter snapshot source for /api/stats.
func (s *Server) SetStatsSource(fn func() stats.Snapshot) {
	s.statsMu.Lock()
	s.statsFn = fn
	s.statsMu.Unlock()
}

// Shutdown stops the server and the hubs.
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.frameHub.Stop()
	s.eventHub.Stop()
	return s.app.ShutdownWithTimeout(5 * time.Second)
}
