package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	steps map[domain.Step]bool
}

// filterMsg narrows delivery to the listed steps. An empty list restores
// the default of every step.
type filterMsg struct {
	Steps []domain.Step `json:"steps"`
}

func (c *client) wants(step domain.Step) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.steps) == 0 || c.steps[step]
}

func (c *client) setFilter(steps []domain.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = make(map[domain.Step]bool, len(steps))
	for _, s := range steps {
		c.steps[s] = true
	}
}

// replay queues recent history before the client is registered, so it
// never races live events into the buffer.
func (c *client) replay(ctx context.Context) {
	if c.hub.history == nil || c.hub.cfg.Stream == "" {
		return
	}
	recent, err := c.hub.history.StreamRecent(ctx, c.hub.cfg.Stream, historySize)
	if err != nil {
		c.hub.logger.Warn("history unavailable", slog.String("error", err.Error()))
		return
	}
	for _, msg := range recent {
		select {
		case c.send <- msg:
		default:
			return
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
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
		var f filterMsg
		if err := json.Unmarshal(message, &f); err == nil {
			c.setFilter(f.Steps)
		}
	}
}

// writePump sends step events as text frames and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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
