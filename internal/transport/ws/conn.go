package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// errClosed is returned by Send after Close.
var errClosed = errors.New("websocket closed")

// Conn is a websocket connection usable as a notify.Channel.
// Writes are serialised; reads happen only in the handler's read loop.
type Conn struct {
	id        string
	ws        *websocket.Conn
	writeWait time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, ws *websocket.Conn, writeWait time.Duration) *Conn {
	return &Conn{id: id, ws: ws, writeWait: writeWait, closed: make(chan struct{})}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Send writes one text frame. The write deadline is the earlier of ctx's
// deadline and the configured write wait.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.closed:
		return errClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(ctx, websocket.TextMessage, payload)
}

func (c *Conn) write(ctx context.Context, messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}

func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// Close sends a close frame and closes the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// Done is closed once Close was called.
func (c *Conn) Done() <-chan struct{} { return c.closed }
