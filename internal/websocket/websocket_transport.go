package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// State is the lifecycle state of a Transport.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TransportConfig configures the client side of a WebSocket connection.
type TransportConfig struct {
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
	// Header is sent with the upgrade request.
	Header http.Header
	// SendBuffer is the number of frames queued before Send blocks.
	SendBuffer int
	// Logger receives transport diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// DefaultTransportConfig returns the default transport configuration
func DefaultTransportConfig() *TransportConfig {
	return &TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		SendBuffer:       256,
	}
}

// Transport implements socialnet.Transport on top of a gorilla WebSocket.
type Transport struct {
	id     string
	url    string
	cfg    *TransportConfig
	logger *zap.Logger

	mu     sync.RWMutex
	state  State
	conn   *websocket.Conn
	sendCh chan []byte

	onConnect []func()
	onMessage []func([]byte)
	onError   []func(error)
	onClose   []func()

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ socialnet.Transport = (*Transport)(nil)

// NewTransport creates a transport for url. A nil cfg uses DefaultTransportConfig.
func NewTransport(url string, cfg *TransportConfig) *Transport {
	if cfg == nil {
		cfg = DefaultTransportConfig()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultTransportConfig().SendBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New().String()
	return &Transport{
		id:     id,
		url:    url,
		cfg:    cfg,
		logger: logger.With(zap.String("transport_id", id), zap.String("url", url)),
		sendCh: make(chan []byte, cfg.SendBuffer),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID returns a unique identifier for the transport
func (t *Transport) ID() string {
	return t.id
}

// State returns the current lifecycle state
func (t *Transport) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsConnected returns true while the socket is open
func (t *Transport) IsConnected() bool {
	return t.State() == StateConnected
}

// Ready is closed once the socket is open and the connect handlers ran
func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

// Done is closed once the transport is closed
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Connect dials the endpoint, starts the pumps and fires the connect handlers
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateConnecting, StateConnected:
		t.mu.Unlock()
		return socialnet.ErrAlreadyConnected
	case StateClosed:
		t.mu.Unlock()
		return socialnet.ErrConnectionClosed
	}
	t.state = StateConnecting
	t.mu.Unlock()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, t.url, t.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		terr := socialnet.NewTransportError(fmt.Errorf("dial websocket: %w", err))
		t.logger.Warn("dial failed", zap.Error(err))
		t.emitError(terr)
		t.shutdown()
		return terr
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	t.mu.Lock()
	if t.state == StateClosed {
		// Close was called while dialing
		t.mu.Unlock()
		conn.Close()
		return socialnet.ErrConnectionClosed
	}
	t.conn = conn
	t.state = StateConnected
	handlers := t.onConnect
	t.onConnect = nil
	t.mu.Unlock()

	go t.writePump(conn)
	go t.readPump(conn)

	t.logger.Debug("connected")
	for _, handler := range handlers {
		handler()
	}
	close(t.ready)
	return nil
}

// Send queues one binary frame for the write pump
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.RLock()
	if t.state != StateConnected {
		t.mu.RUnlock()
		return socialnet.ErrNotConnected
	}

	// Keep the lock while queueing to prevent a race with shutdown
	select {
	case t.sendCh <- data:
		t.mu.RUnlock()
		return nil
	case <-ctx.Done():
		t.mu.RUnlock()
		return ctx.Err()
	case <-t.done:
		t.mu.RUnlock()
		return socialnet.ErrConnectionClosed
	}
}

// Close closes the connection. It is a no-op if Connect was never called.
func (t *Transport) Close() error {
	if t.State() == StateDisconnected {
		return nil
	}
	t.shutdown()
	return nil
}

// OnConnect registers a connect handler, fired at once if already connected
func (t *Transport) OnConnect(handler func()) {
	t.mu.Lock()
	switch t.state {
	case StateConnected:
		t.mu.Unlock()
		handler()
		return
	case StateClosed:
		t.mu.Unlock()
		return
	}
	t.onConnect = append(t.onConnect, handler)
	t.mu.Unlock()
}

// OnMessage registers a handler for binary frames
func (t *Transport) OnMessage(handler func(data []byte)) {
	t.mu.Lock()
	t.onMessage = append(t.onMessage, handler)
	t.mu.Unlock()
}

// OnError registers a handler for socket failures
func (t *Transport) OnError(handler func(err error)) {
	t.mu.Lock()
	t.onError = append(t.onError, handler)
	t.mu.Unlock()
}

// OnClose registers a close handler, fired at once if already closed
func (t *Transport) OnClose(handler func()) {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		handler()
		return
	}
	t.onClose = append(t.onClose, handler)
	t.mu.Unlock()
}

func (t *Transport) emitError(err error) {
	t.mu.RLock()
	handlers := t.onError
	t.mu.RUnlock()

	for _, handler := range handlers {
		handler(err)
	}
}

func (t *Transport) emitMessage(data []byte) {
	t.mu.RLock()
	handlers := t.onMessage
	t.mu.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
}

// shutdown moves the transport to StateClosed exactly once and fires the
// close handlers.
func (t *Transport) shutdown() {
	t.closeOnce.Do(func() {
		// Closing done first releases senders blocked while holding the read lock
		close(t.done)

		t.mu.Lock()
		t.state = StateClosed
		conn := t.conn
		handlers := t.onClose
		t.onClose = nil
		t.onConnect = nil
		t.mu.Unlock()

		if conn != nil {
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
			conn.Close()
		}

		t.logger.Debug("closed")
		for _, handler := range handlers {
			handler()
		}
	})
}

// readPump delivers binary frames to the message handlers until the
// connection fails or is closed
func (t *Transport) readPump(conn *websocket.Conn) {
	defer t.shutdown()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				// Closed locally
				return
			default:
			}
			if isUnexpected(err) {
				t.logger.Warn("read failed", zap.Error(err))
				t.emitError(socialnet.NewTransportError(err))
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.BinaryMessage {
			t.logger.Debug("ignoring non-binary frame", zap.Int("type", msgType))
			continue
		}

		t.emitMessage(data)
	}
}

// writePump pumps frames from the send channel to the connection
func (t *Transport) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-t.sendCh:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				t.failWrite(err)
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.failWrite(err)
				return
			}

		case <-t.done:
			return
		}
	}
}

func (t *Transport) failWrite(err error) {
	select {
	case <-t.done:
		return
	default:
	}
	t.logger.Warn("write failed", zap.Error(err))
	t.emitError(socialnet.NewTransportError(err))
	t.shutdown()
}

func isUnexpected(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code != websocket.CloseNormalClosure && closeErr.Code != websocket.CloseGoingAway
	}
	return true
}
