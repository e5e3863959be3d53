package ui

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
	"interview-assist-service/internal/observability/metrics"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	clientBuf  = 64
)

type client struct {
	conn *websocket.Conn
	send chan models.Event
}

// Hub manages UI websocket connections and broadcasts session events.
// New clients first receive the latest status and current question.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan models.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int32

	// Replayed to new clients
	lastStatus   *models.Event
	lastQuestion *models.Event

	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(m *metrics.Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan models.Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // UI is served from a different origin in dev
			},
		},
		metrics: m,
		logger:  logger,
	}
}

// clientCount returns the number of connected clients.
func (h *Hub) clientCount() int {
	return int(h.count.Load())
}

// Notify queues ev for every client without blocking.
func (h *Hub) Notify(ev models.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.metrics.RecordUIEventDropped()
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.count.Add(1)
			h.metrics.RecordUIClient(1)
			for _, ev := range []*models.Event{h.lastStatus, h.lastQuestion} {
				if ev != nil {
					c.send <- *ev
				}
			}
			h.logger.Info().Int("clients", len(h.clients)).Msg("UI client connected")

		case c := <-h.unregister:
			if h.clients[c] {
				h.remove(c)
				h.logger.Info().Int("clients", len(h.clients)).Msg("UI client disconnected")
			}

		case ev := <-h.broadcast:
			h.remember(ev)
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					h.metrics.RecordUIEventDropped()
				}
			}
		}
	}
}

func (h *Hub) remember(ev models.Event) {
	switch ev.EventType {
	case models.EventStatus:
		h.lastStatus = &ev
		if ev.Status == models.StatusStopped {
			h.lastQuestion = nil
		}
	case models.EventCurrentQuestion:
		if ev.Text == "" {
			h.lastQuestion = nil
		} else {
			h.lastQuestion = &ev
		}
	}
}

func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
	h.metrics.RecordUIClient(-1)
}

// ServeHTTP upgrades the request and attaches the client to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := &client{conn: conn, send: make(chan models.Event, clientBuf)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)

	// Keep connection alive, handle disconnects
	go func() {
		defer func() {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.logger.Debug().Err(err).Msg("UI write error")
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
