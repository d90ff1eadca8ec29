package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"volscreener/internal/model"
)

// Hub manages websocket clients and pushes each new screen result to all
// of them. A client that connects late receives the latest result first.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  []byte

	log *zap.Logger

	// OnClients is called with the client count after every change.
	OnClients func(n int)
}

// NewHub creates an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		log:     log.With(zap.String("component", "gateway")),
	}
}

// PublishResult implements model.ResultPublisher.
func (h *Hub) PublishResult(ctx context.Context, r model.ScreenResult) error {
	data, err := json.Marshal(NewScreenOut(r))
	if err != nil {
		return fmt.Errorf("gateway: marshal result: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("ws client send buffer full, dropping result", zap.String("cycle_id", r.CycleID))
		}
	}
	return nil
}

// Attach registers an upgraded connection and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	if h.latest != nil {
		client.send <- h.latest
	}
	h.mu.Unlock()

	h.log.Info("ws client connected", zap.Int("clients", count))
	h.notifyCount(count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client disconnected", zap.Int("clients", count))
	h.notifyCount(count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// offer queues msg for c unless c is gone or its buffer is full.
func (h *Hub) offer(c *Client, msg []byte) {
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) latestPayload() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

func (h *Hub) notifyCount(n int) {
	if h.OnClients != nil {
		h.OnClients(n)
	}
}
