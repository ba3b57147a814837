package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/socialnet"
)

const connSendBuffer = 256

// Conn is an accepted connection. Writes go through a single pump goroutine;
// reads are owned by the Server.
type Conn struct {
	id         string
	conn       *websocket.Conn
	remoteAddr string
	limiter    *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	out    chan []byte

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an upgraded connection and starts its write pump. Incoming
// frames are limited by rl when it is enabled.
func NewConn(conn *websocket.Conn, remoteAddr string, rl *RateLimitConfig) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		id:         uuid.NewString(),
		conn:       conn,
		remoteAddr: remoteAddr,
		limiter:    rl.NewLimiter(),
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan []byte, connSendBuffer),
	}
	go c.pump()
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Context is cancelled once the connection is closed on this side.
func (c *Conn) Context() context.Context { return c.ctx }

// Send queues one binary frame. It fails with socialnet.ErrConnectionClosed
// once the connection is closed.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return socialnet.ErrConnectionClosed
	}
	select {
	case c.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return socialnet.ErrConnectionClosed
	}
}

// Close closes the connection with a normal closure.
func (c *Conn) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode sends a close frame with code and reason, then closes the
// socket. Only the first call has an effect.
func (c *Conn) CloseWithCode(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.cancel()
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Conn) extendDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// pump writes queued frames and keeps the peer alive with pings.
func (c *Conn) pump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case data = <-c.out:
			kind = websocket.BinaryMessage
		case <-ticker.C:
			kind = websocket.PingMessage
		case <-c.ctx.Done():
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			// unblocks the reader, which reports the disconnect
			c.conn.Close()
			return
		}
	}
}
