package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skeetbot/skeet/internal/log"
)

// WebsocketSink dials an external websocket endpoint and pushes each
// event as one JSON text message. The connection is re-dialed lazily
// after failures; events during an outage are lost.
type WebsocketSink struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	lastDial time.Time
}

// redialBackoff spaces reconnect attempts, so a dead endpoint costs
// one dial per window rather than one per event.
const redialBackoff = 5 * time.Second

// NewWebsocketSink targets url (ws:// or wss://).
func NewWebsocketSink(url string) *WebsocketSink {
	return &WebsocketSink{url: url}
}

func (s *WebsocketSink) Notify(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn("notification encode failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil && !s.dial() {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("websocket push failed", "error", err)
		s.conn.Close()
		s.conn = nil
		if s.dial() {
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("websocket push retry failed", "error", err)
				s.conn.Close()
				s.conn = nil
			}
		}
	}
}

func (s *WebsocketSink) dial() bool {
	if time.Since(s.lastDial) < redialBackoff {
		return false
	}
	s.lastDial = time.Now()

	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		log.Warn("websocket dial failed", "url", s.url, "error", err)
		return false
	}
	s.conn = conn
	return true
}

// Close shuts the connection down.
func (s *WebsocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
