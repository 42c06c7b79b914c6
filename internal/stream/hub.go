// Package stream broadcasts stored opportunities to websocket
// subscribers.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"marketfinder/internal/domain"
	"marketfinder/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Read-only feed, no cross-origin state to protect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans opportunities out to connected subscribers. Slow
// subscribers are dropped rather than allowed to stall the broadcast.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}
	metrics    *observability.Metrics
	log        zerolog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub. metrics may be nil.
func NewHub(metrics *observability.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBufferSize),
		clients:    make(map[*client]struct{}),
		metrics:    metrics,
		log:        log,
	}
}

// Run owns the client set. Blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.gauge()
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.gauge()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.gauge()
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.gauge()
				}
			}
		}
	}
}

// Publish queues an opportunity for broadcast. Drops the message when
// the broadcast buffer is full so the pipeline never blocks on slow
// subscribers.
func (h *Hub) Publish(opp *domain.Opportunity) {
	data, err := json.Marshal(opp)
	if err != nil {
		h.log.Warn().Err(err).Str("opportunity_id", opp.OpportunityID).Msg("opportunity marshal failed")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Msg("broadcast buffer full, dropping opportunity")
	}
}

// ServeWS upgrades an HTTP request into a subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

// readPump discards inbound frames and detects the close handshake.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump delivers broadcasts and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.StreamSubscribers.Set(float64(len(h.clients)))
	}
}
