package wsbridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// writeTimeout bounds a write when the caller's context has no deadline.
const writeTimeout = 10 * time.Second

// Compile-time verification that conn implements config.Window.
var _ config.Window = (*conn)(nil)

// conn is the host's handle to one launched guest. It exists from launch on; the
// websocket is attached when the guest dials back.
type conn struct {
	host  *Host
	token string
	kind  string

	connected   chan struct{}
	connectOnce sync.Once
	closeOnce   sync.Once
	closed      atomic.Bool

	mu     sync.Mutex
	ws     *websocket.Conn
	origin string

	writeMu sync.Mutex
}

// attach binds the dialed websocket. A token can only be used once.
func (c *conn) attach(ws *websocket.Conn, origin string) bool {
	attached := false

	c.connectOnce.Do(func() {
		c.mu.Lock()
		c.ws = ws
		c.origin = origin
		c.mu.Unlock()

		attached = true
		close(c.connected)
	})

	return attached && !c.closed.Load()
}

// PostMessage implements config.Window. Messages to a guest that has not connected,
// has gone, or whose origin differs from targetOrigin are dropped.
func (c *conn) PostMessage(ctx context.Context, data []byte, targetOrigin string) error {
	if c.closed.Load() {
		return nil
	}

	c.mu.Lock()
	ws, origin := c.ws, c.origin
	c.mu.Unlock()

	if ws == nil {
		c.host.log.Debug("Dropping message to unconnected guest", "token", c.token)

		return nil
	}

	if targetOrigin != protocol.AnyOrigin && targetOrigin != origin {
		return nil
	}

	return writeText(ctx, &c.writeMu, ws, data)
}

// Close implements config.Window.
func (c *conn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.host.forget(c.token)

		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()

		if ws != nil {
			err = closeWebsocket(&c.writeMu, ws)
		}
	})

	return err
}

// Closed implements config.Window.
func (c *conn) Closed() bool {
	return c.closed.Load()
}

type surface struct {
	conn *conn
}

// Compile-time verification that surface implements config.Surface.
var _ config.Surface = (*surface)(nil)

func (s *surface) Window() config.Window   { return s.conn }
func (s *surface) Loaded() <-chan struct{} { return s.conn.connected }
func (s *surface) Remove() error           { return s.conn.Close() }

type container struct {
	id string
}

func (c container) ID() string { return c.id }

func writeText(ctx context.Context, mu *sync.Mutex, ws *websocket.Conn, data []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}

	mu.Lock()
	defer mu.Unlock()

	if err := ws.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return ws.WriteMessage(websocket.TextMessage, data)
}

func closeWebsocket(mu *sync.Mutex, ws *websocket.Conn) error {
	mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	mu.Unlock()

	return ws.Close()
}
