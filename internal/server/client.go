// Package server manages individual WebSocket clients, handling read/write
// pumps, per-connection throttling, and lifecycle control for each
// connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client represents one WebSocket connection. Its id is the opaque handle the
// roster and the hub key on; the display name lives in the roster, not here.
type Client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	closed  bool
	limiter *tokenBucket
	log     *slog.Logger
}

// NewClient builds a client around an upgraded connection. The send channel
// is buffered so fan-out never blocks on one slow reader.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxFrameSize)
	}
	return &Client{
		id:      uuid.New(),
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		hub:     hub,
		addr:    addr,
		limiter: newTokenBucket(cfg.RateLimitBurst, cfg.RateLimitRefill),
		log:     hub.log,
	}
}

// ID exposes the connection handle, mainly for logging and tests.
func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", "addr", c.addr, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", "addr", c.addr, "error", err)
		}
		return nil
	})
}

// handleReadError reports whether the read loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("frame exceeded maximum size", "addr", c.addr, "limit", c.hub.cfg.MaxFrameSize)
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("client disconnected", "addr", c.addr, "reason", err)
		return true
	}
	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("client connection closed", "addr", c.addr, "reason", err)
		return true
	}

	c.log.Warn("websocket read error", "addr", c.addr, "error", err)
	return true
}

// processFrame decodes the envelope and hands it to the hub. A frame that is
// not valid JSON is a protocol error: logged, ignored, never fatal.
func (c *Client) processFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("invalid frame", "addr", c.addr, "error", err)
		return
	}
	c.hub.dispatch(c, env)
}

// readPump pulls frames off the connection until it dies, serializing this
// client's own events. Dispatch (including a blocking message persist)
// happens inline, so one client's slow submission never reorders its own
// events nor blocks anyone else's.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in readPump", "addr", c.addr, "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.limiter.allow() {
			c.log.Warn("rate limit exceeded; discarding frame", "addr", c.addr)
			continue
		}
		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in writePump", "addr", c.addr, "error", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("error setting write deadline", "addr", c.addr, "error", err)
				return
			}
			if !ok {
				// Hub closed the channel; say goodbye.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("error writing frame", "addr", c.addr, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("error setting write deadline for ping", "addr", c.addr, "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("error writing ping", "addr", c.addr, "error", err)
				return
			}
		}
	}
}

// isExpectedCloseError checks if an error is routine connection teardown.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
