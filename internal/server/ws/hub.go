// Package ws bridges signal-bus channels to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config controls which bus channels the hub relays and what it reports in
// the status frame sent on connect.
type Config struct {
	Channels       []string
	Mode           string
	Venues         []string
	StartedAt      time.Time
	AllowedOrigins []string
}

// frame is the envelope of everything written to a client.
type frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans bus messages out to the connected clients subscribed to their
// channel.
type Hub struct {
	bus      domain.SignalBus
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	stopped bool
}

// NewHub creates a Hub. bus may be nil, in which case only Broadcast feeds
// clients.
func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	h := &Hub{
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.allowOrigin,
	}
	return h
}

func (h *Hub) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.ContainsFunc(h.cfg.AllowedOrigins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin)
	})
}

// Run relays every configured bus channel until ctx is cancelled, then
// disconnects all clients.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if h.bus != nil {
		for _, ch := range h.cfg.Channels {
			wg.Go(func() { h.relay(ctx, ch) })
		}
	}

	<-ctx.Done()

	h.mu.Lock()
	h.stopped = true
	for c := range h.clients {
		c.shutdown()
	}
	clear(h.clients)
	h.mu.Unlock()

	wg.Wait()
	return ctx.Err()
}

func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: relaying channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: subscription closed", slog.String("channel", channel))
				return
			}
			h.Broadcast(channel, data)
		}
	}
}

// Broadcast sends data to every client subscribed to channel. Clients whose
// queue is full miss the message.
func (h *Hub) Broadcast(channel string, data []byte) {
	out, err := json.Marshal(frame{Type: "message", Channel: channel, Payload: asJSON(data)})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.wants(channel) && !c.offer(out) {
			h.logger.Warn("ws: client queue full, message dropped", slog.String("channel", channel))
		}
	}
}

// HandleWS upgrades the request and registers the client, subscribed to
// every configured channel.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, h.cfg.Channels)
	c.offer(h.statusFrame())
	if !h.add(c) {
		_ = conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop()
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("ws: client connected", slog.Int("clients", len(h.clients)))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.shutdown()
	h.logger.Info("ws: client disconnected", slog.Int("clients", len(h.clients)))
}

// statusFrame lets clients mark the connection live before the first cycle
// publishes anything.
func (h *Hub) statusFrame() []byte {
	payload, err := json.Marshal(map[string]any{
		"mode":           h.cfg.Mode,
		"venues":         h.cfg.Venues,
		"channels":       h.cfg.Channels,
		"uptime_seconds": int64(time.Since(h.cfg.StartedAt).Seconds()),
	})
	if err != nil {
		return nil
	}
	out, _ := json.Marshal(frame{Type: "engine_status", Payload: payload})
	return out
}

// asJSON passes valid JSON through and quotes anything else as a string.
func asJSON(data []byte) json.RawMessage {
	if json.Valid(data) {
		return data
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
