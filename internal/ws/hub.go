// Package ws is the IPC surface between the orchestrator and its UI
// renderers, the Go analogue of the Electron main-process message table.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
)

// client is one connected UI surface. Writes are serialized per
// connection; gorilla allows only one concurrent writer.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks connected UI surfaces and fans events out to all of them.
type Hub struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		clients: make(map[string]*client),
	}
}

// Broadcast sends one event to every connected surface. Dead connections
// are dropped; their read loops clean up on their own.
func (h *Hub) Broadcast(msgType string, payload map[string]any) {
	msg := envelope(msgType, payload)

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Debug("broadcast failed", zap.String("client", c.id), zap.Error(err))
		}
	}
}

// ClientCount returns the number of connected surfaces.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
}

// envelope builds the wire message: a flat object with "type" plus the
// payload fields.
func envelope(msgType string, payload map[string]any) map[string]any {
	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = msgType
	return msg
}
