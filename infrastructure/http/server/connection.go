package server

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a control frame to the peer.
	controlWait = time.Second

	// Maximum frame size accepted from the peer.
	maxFrameSize = 16 * 1024
)

// Connection is the websocket end of one participant. Only the delivery
// worker calls Send; reads happen in the handler goroutine.
type Connection struct {
	ws       *websocket.Conn
	renderer Renderer
	writeMu  sync.Mutex
	closed   atomic.Bool
}

func NewConnection(ws *websocket.Conn, renderer Renderer) *Connection {
	return &Connection{ws: ws, renderer: renderer}
}

// Send writes one payload. Without a deadline on ctx the write may block.
func (c *Connection) Send(ctx context.Context, payload domain.Payload) error {
	if !c.IsOpen() {
		return errors.ErrChannelClosed
	}
	data, err := c.renderer.Render(ctx, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and releases the socket. Safe to call twice.
func (c *Connection) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, "")
}

// Reject closes a connection that was never registered.
func (c *Connection) Reject(reason string) error {
	return c.closeWith(websocket.ClosePolicyViolation, reason)
}

func (c *Connection) IsOpen() bool {
	return !c.closed.Load()
}

func (c *Connection) closeWith(code int, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(controlWait))
	return c.ws.Close()
}

// keepAlive pings the peer every interval until ctx is done or a ping fails.
func (c *Connection) keepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWait)); err != nil {
				return
			}
		}
	}
}
