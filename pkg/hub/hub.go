package hub

import (
	"encoding/json"
	"sync"

	"github.com/skeetbot/skeet/internal/log"
)

// Hub maintains the set of connected clients and broadcasts messages
// to them. One hub per stream keeps frame traffic from crowding out
// status updates.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}

	mu sync.RWMutex
}

// New creates a hub. Call Run on its own goroutine before use.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run is the hub's dispatch loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("dashboard client connected", "hub", h.name, "count", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("dashboard client disconnected", "hub", h.name, "count", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client cannot keep up with the tick rate.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropped slow dashboard client", "hub", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the dispatch loop down and disconnects all clients.
func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast queues a message for all clients, dropping it when the
// queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Debug("broadcast queue full", "hub", h.name)
	}
}

// BroadcastJSON encodes v and broadcasts it under kind.
func (h *Hub) BroadcastJSON(kind Kind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Kind: kind, Data: data})
	return nil
}

// BroadcastFrame broadcasts a JPEG frame.
func (h *Hub) BroadcastFrame(jpeg []byte) {
	h.Broadcast(Message{Kind: KindFrame, Data: jpeg})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
