// Package ws pushes engine events to dashboard clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256

	// historySize is how many events Recent can return.
	historySize = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS and auth middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope is the frame sent to clients.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	events map[domain.EventType]bool // empty means every event
}

// subscribeMsg narrows or widens the event types a client receives, e.g.
// {"action":"subscribe","events":["position_opened","position_closed"]}.
type subscribeMsg struct {
	Action string             `json:"action"`
	Events []domain.EventType `json:"events"`
}

type broadcastMsg struct {
	event domain.EventType
	data  []byte
}

// StatusFunc produces the snapshot sent to a client on connect.
type StatusFunc func() any

// Hub manages connected WebSocket clients. Events reach it either directly
// through Notify or from the signal bus when one is configured.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	channel    string
	status     StatusFunc
	logger     *slog.Logger

	mu      sync.RWMutex
	history [][]byte
}

var _ domain.NotificationSink = (*Hub)(nil)

// NewHub creates a hub. When bus is non-nil Run subscribes to channel and
// relays what arrives there; otherwise events must be fed through Notify.
// status may be nil.
func NewHub(bus domain.SignalBus, channel string, status StatusFunc, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		channel:    channel,
		status:     status,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Notify queues ev for every subscribed client.
func (h *Hub) Notify(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.WarnContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return
	}
	h.enqueue(ctx, ev.Type, payload)
}

func (h *Hub) enqueue(ctx context.Context, typ domain.EventType, payload []byte) {
	h.remember(payload)
	frame, err := json.Marshal(envelope{Type: "event", Payload: payload})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- broadcastMsg{event: typ, data: frame}:
	default:
		h.logger.WarnContext(ctx, "broadcast queue full, dropping event",
			slog.String("event", string(typ)),
		)
	}
}

func (h *Hub) remember(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, payload)
	if over := len(h.history) - historySize; over > 0 {
		h.history = append(h.history[:0:0], h.history[over:]...)
	}
}

// Recent returns up to count of the latest events, newest first. The stream
// argument is ignored; the hub keeps a single history.
func (h *Hub) Recent(_ context.Context, _ string, count int64) ([][]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := min(int(count), len(h.history))
	out := make([][]byte, 0, n)
	for i := len(h.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.history[i])
	}
	return out, nil
}

// Run starts the hub's event loop. It handles client registration,
// unregistration and broadcasting until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		go h.relay(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.event) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// relay forwards bus payloads to the clients.
func (h *Hub) relay(ctx context.Context) {
	msgs, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.ErrorContext(ctx, "subscribe failed",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.InfoContext(ctx, "relaying bus events", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("bus subscription closed", slog.String("channel", h.channel))
				return
			}
			var head struct {
				Type domain.EventType `json:"type"`
			}
			if err := json.Unmarshal(data, &head); err != nil {
				continue
			}
			h.enqueue(ctx, head.Type, data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		events: make(map[domain.EventType]bool),
	}
	h.register <- c
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

func (c *client) wants(ev domain.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events) == 0 || c.events[ev]
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, ev := range msg.Events {
			c.events[ev] = true
		}
	case "unsubscribe":
		for _, ev := range msg.Events {
			delete(c.events, ev)
		}
	case "reset":
		clear(c.events)
	}
}

// sendStatus pushes the engine snapshot so the dashboard can render before
// the first event arrives.
func (c *client) sendStatus() {
	if c.hub.status == nil {
		return
	}
	payload, err := json.Marshal(c.hub.status())
	if err != nil {
		return
	}
	frame, err := json.Marshal(envelope{Type: "status", Payload: payload})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
