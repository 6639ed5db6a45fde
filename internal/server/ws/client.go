package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	// Pings must arrive before the peer's read deadline expires.
	pingEvery = readTimeout * 9 / 10

	maxInbound = 4096
	queueSize  = 256
)

// control is what a client sends to change its subscriptions, e.g.
// {"action":"subscribe","channels":["arb"]}. A channel ending in "*" matches
// by prefix.
type control struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	// queue is closed by shutdown, always under hub.mu.
	queue chan []byte
	once  sync.Once

	mu   sync.RWMutex
	subs map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, channels []string) *client {
	c := &client{
		hub:   h,
		conn:  conn,
		queue: make(chan []byte, queueSize),
		subs:  make(map[string]struct{}, len(channels)),
	}
	for _, ch := range channels {
		c.subs[ch] = struct{}{}
	}
	return c
}

// offer queues msg without blocking and reports whether it fit.
func (c *client) offer(msg []byte) bool {
	if msg == nil {
		return true
	}
	select {
	case c.queue <- msg:
		return true
	default:
		return false
	}
}

func (c *client) shutdown() {
	c.once.Do(func() { close(c.queue) })
}

func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.subs[channel]; ok {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *client) apply(ctl control) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ctl.Action {
	case "subscribe":
		for _, ch := range ctl.Channels {
			c.subs[ch] = struct{}{}
		}
	case "unsubscribe":
		for _, ch := range ctl.Channels {
			delete(c.subs, ch)
		}
	}
}

func (c *client) readLoop() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: connection closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
		var ctl control
		if json.Unmarshal(raw, &ctl) == nil && ctl.Action != "" {
			c.apply(ctl)
		}
	}
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
