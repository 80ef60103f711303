package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer for browsers
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient represents a WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub fans bus events out to every connected client
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	closeOnce  sync.Once
	logger     zerolog.Logger
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(logger zerolog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 1024),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the WebSocket hub and returns after Close
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close disconnects every client and stops Run
func (h *WSHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// BroadcastEvent broadcasts an event to all connected clients
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal event")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.logger.Warn().Str("type", string(event.Type)).Msg("Broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and closes are processed
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

// handleWebSocket upgrades the connection and streams signal events
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  s.hub,
	}

	// Queue the greeting before registering so it is the first frame
	welcome, _ := json.Marshal(map[string]interface{}{
		"type":      "CONNECTED",
		"timestamp": time.Now().UTC(),
	})
	client.send <- welcome

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
