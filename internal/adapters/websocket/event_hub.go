// Package websocket streams normalized inbound events to connected viewers
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"facebook-action/internal/core/ports"
)

// Ensure EventHub implements EventPublisher
var _ ports.EventPublisher = (*EventHub)(nil)

// EventHub manages WebSocket connections and fans events out to all of them
// Publishing never blocks: events are dropped when buffers are full
type EventHub struct {
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// Closed when Run returns; register and unregister have no receiver after that
	done chan struct{}

	mu sync.RWMutex

	// Empty disables the feed entirely
	secretKey string

	upgrader websocket.Upgrader
}

// Client represents a connected WebSocket client
type Client struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

const (
	broadcastBufferSize = 256
	clientBufferSize    = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewEventHub creates a new EventHub instance
func NewEventHub(secretKey string) *EventHub {
	return &EventHub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		secretKey:  secretKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Panel may be served from another origin; access is gated by the secret key
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run is the hub's event loop; it returns when ctx is cancelled
// Run must be called at most once
func (h *EventHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("Event viewer connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("Event viewer disconnected", "total", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				// Slow viewers miss events instead of stalling the hub
				select {
				case client.send <- message:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues event as a JSON text frame for every viewer
func (h *EventHub) Publish(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		slog.Warn("Event hub buffer full, event dropped")
	}
}

// ServeWS handles WebSocket upgrade requests
// Route: /ws/events?secret_key=EVENTS_SECRET
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	queryKey := r.URL.Query().Get("secret_key")
	if h.secretKey == "" || queryKey != h.secretKey {
		http.Error(w, "Unauthorized: Invalid or missing secret_key", http.StatusUnauthorized)
		slog.Warn("Unauthorized WebSocket attempt", "remote_addr", r.RemoteAddr)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("WebSocket read error", "error", err)
			}
			return
		}
	}
}

// writePump sends one frame per event and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the current number of connected viewers
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
