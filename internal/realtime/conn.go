package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned when writing to a connection that has been closed.
var ErrConnClosed = errors.New("realtime: connection closed")

// Conn wraps a websocket connection with a write mutex and per-write deadline
// so concurrent broadcasters never interleave frames.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// WriteJSON sends one envelope guarded by the connection's write mutex and
// write deadline.
func (c *Conn) WriteJSON(env Envelope) error {
	if c == nil || c.ws == nil {
		return ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(env)
}

// WriteControl sends a websocket control frame (ping/close) under the same
// mutex as data frames.
func (c *Conn) WriteControl(messageType int, data []byte) error {
	if c == nil || c.ws == nil {
		return ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteControl(messageType, data, time.Now().Add(c.writeTimeout))
}

// ReadJSON blocks on the next inbound frame.
func (c *Conn) ReadJSON(v any) error {
	if c == nil || c.ws == nil {
		return ErrConnClosed
	}
	return c.ws.ReadJSON(v)
}

// Close tears the connection down once; later writes fail with ErrConnClosed.
func (c *Conn) Close() error {
	if c == nil || c.ws == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

// Raw exposes the underlying websocket connection for read-side configuration
// (read limits, pong handlers). Write paths must go through the wrapper.
func (c *Conn) Raw() *websocket.Conn {
	if c == nil {
		return nil
	}
	return c.ws
}
