package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet/internal/protocol"
)

// CheckOriginFn validates the origin of an upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after the handshake and before the first read.
type OnConnectFn = func(conn *Conn)

// OnFrameFn receives every binary frame of a connection, in order, on the
// connection's read goroutine. Text frames never reach it.
type OnFrameFn = func(conn *Conn, data []byte)

// OnDisconnectFn is called once reading stops. voluntary is true when the
// connection was closed on this side.
type OnDisconnectFn = func(conn *Conn, voluntary bool)

var ErrServerAlreadyRunning = errors.New("server already running")

// ServerConfig configures the accepting side of the RPC endpoint.
type ServerConfig struct {
	Addr            string
	Path            string
	RateLimitConfig *RateLimitConfig
	CheckOrigin     CheckOriginFn
	OnConnect       OnConnectFn
	OnFrame         OnFrameFn
	OnDisconnect    OnDisconnectFn
	Logger          *zap.Logger
}

// AllOrigins accepts upgrades from any origin. Local tooling and tests only.
func AllOrigins() CheckOriginFn {
	return func(*http.Request) bool { return true }
}

// Server upgrades HTTP requests and feeds each connection's frames to OnFrame.
type Server struct {
	cfg      *ServerConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	conns    map[*Conn]struct{}
}

// NewServer creates a server. A nil RateLimitConfig uses DefaultRateLimitConfig
// and an empty Path serves the root.
func NewServer(cfg *ServerConfig) *Server {
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[*Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler mounts the upgrade endpoint on Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.upgrade)
	return mux
}

// Start binds Addr and serves in the background until Stop. ctx becomes the
// base context of every request.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.listener, s.http = ln, srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("rpc endpoint stopped", zap.Error(err))
		}
	}()
	s.logger.Info("rpc endpoint listening", zap.Stringer("addr", ln.Addr()), zap.String("path", s.cfg.Path))
	return nil
}

// Addr is the bound address, or nil while stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Connections counts the open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop sends going-away to every connection and shuts the listener down.
// Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http, s.listener = nil, nil
	open := make([]*Conn, 0, len(s.conns))
	for conn := range s.conns {
		open = append(open, conn)
	}
	s.mu.Unlock()

	for _, conn := range open {
		conn.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		s.logger.Debug("upgrade rejected", zap.Error(err))
		return
	}
	ws.SetReadLimit(protocol.MaxFrameSize)

	conn := NewConn(ws, r.RemoteAddr, s.cfg.RateLimitConfig)
	s.track(conn, true)
	go s.serve(conn)
}

func (s *Server) track(conn *Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// serve owns the read side of conn until it fails or is closed.
func (s *Server) serve(conn *Conn) {
	logger := s.logger.With(zap.String("conn_id", conn.ID()), zap.String("remote_addr", conn.RemoteAddr()))
	defer func() {
		voluntary := errors.Is(conn.Context().Err(), context.Canceled)
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect(conn, voluntary)
		}
		s.track(conn, false)
		conn.Close()
		logger.Debug("connection closed", zap.Bool("voluntary", voluntary))
	}()

	conn.extendDeadline()
	conn.conn.SetPongHandler(func(string) error {
		conn.extendDeadline()
		return nil
	})

	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect(conn)
	}

	for {
		kind, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		conn.extendDeadline()

		if !conn.allow() {
			logger.Warn("closing connection over rate limit")
			conn.CloseWithCode(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}
		if kind == websocket.BinaryMessage && s.cfg.OnFrame != nil {
			s.cfg.OnFrame(conn, data)
		}
	}
}
