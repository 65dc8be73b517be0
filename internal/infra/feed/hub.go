// Package feed is an optional, read-only dashboard broadcaster: it
// exposes the exchange's trade, market-data, and rejection streams over a
// WebSocket so an external UI can watch a running simulation. It accepts
// no commands from clients and never submits orders — the core's
// programmatic API has no wire protocol, and this package is a thin
// observer bolted on outside it, not part of the core. Grounded on
// uhyunpark-hyperlicked/pkg/api/websocket.go's Hub/Client pattern
// (register/unregister/broadcast channels, per-client send buffer,
// ping/pong keepalive), trimmed to remove client subscriptions since
// every client here gets the same firehose.
package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of connected dashboard clients and fans out
// broadcast messages to all of them.
type Hub struct {
	log *slog.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

// NewHub creates a hub. Call Run in its own goroutine to start it.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run is the hub's single-threaded event loop; it owns the clients map
// and must not be called from more than one goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("feed client connected", "id", c.id, "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug("feed client disconnected", "id", c.id, "total", len(h.clients))
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// envelope wraps a typed payload with a discriminator so a single stream
// can carry trades, market-data ticks, and rejections together.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Publish marshals data and broadcasts it, tagged with kind, to every
// connected client. Publish never blocks: a client whose buffer is full
// is dropped rather than allowed to stall the broadcast loop.
func (h *Hub) Publish(kind string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.Warn("feed publish marshal failed", "kind", kind, "error", err)
		return
	}

	msg, err := json.Marshal(envelope{Type: kind, Data: payload})
	if err != nil {
		h.log.Warn("feed publish envelope failed", "kind", kind, "error", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("feed broadcast buffer full, dropping message", "kind", kind)
	}
}

// ServeHTTP upgrades the connection to a WebSocket and registers a new
// read-only client, matching the handleWebSocket handler shape the
// teacher wires directly into its own HTTP mux.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

// client is one connected dashboard viewer. It is write-only from the
// hub's perspective; readPump exists solely to detect disconnects and
// answer pings, per gorilla/websocket's keepalive contract.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
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
