// Package ws pushes report counters to browser clients over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

// Message is the frame sent to clients.
type Message struct {
	Type  string       `json:"type"`
	Stats domain.Stats `json:"stats"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans stats updates out to connected clients. A slow client is
// disconnected rather than allowed to stall the others.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	updates  chan domain.Stats
	snapshot func() domain.Stats
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a Hub. snapshot supplies the counters sent to a client on connect.
func NewHub(snapshot func() domain.Stats, logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		updates:  make(chan domain.Stats, 16),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Broadcast queues stats for delivery. It never blocks; when the queue is
// full the update is dropped because a newer one will follow.
func (h *Hub) Broadcast(stats domain.Stats) {
	select {
	case h.updates <- stats:
	default:
		h.logger.Debug("stats update dropped, hub queue full")
	}
}

// Run delivers queued updates until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case stats := <-h.updates:
			h.deliver(stats)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams stats until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if h.snapshot != nil {
		if msg, err := encode(h.snapshot()); err == nil {
			c.send <- msg
		}
	}
	h.register(c)
	h.logger.Info("stats client connected", "clients", h.ClientCount())

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) deliver(stats domain.Stats) {
	msg, err := encode(stats)
	if err != nil {
		h.logger.Error("failed to encode stats", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropping slow stats client")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump discards inbound frames and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.logger.Info("stats client disconnected", "clients", h.ClientCount())
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("stats write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(stats domain.Stats) ([]byte, error) {
	return json.Marshal(Message{Type: "stats", Stats: stats})
}
