package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet/internal/protocol"
	"github.com/luciancaetano/socialnet/internal/websocket"
)

// UnaryHandler answers a single request with a single response.
type UnaryHandler func(ctx context.Context, sess *Session, payload json.RawMessage) (any, error)

// StreamHandler produces a stream of elements. send blocks until the caller
// acknowledges the element and returns an error once the caller stops the
// stream or the connection closes.
type StreamHandler func(ctx context.Context, sess *Session, payload json.RawMessage, send func(v any) error) error

// SessionFn observes the lifecycle of an authenticated session.
type SessionFn func(sess *Session)

// AuthenticateFn validates the header map a caller sends as its first frame
// and returns the caller's address.
type AuthenticateFn func(headers map[string]string) (string, error)

type handler struct {
	name   string
	unary  UnaryHandler
	stream StreamHandler
}

// Module is a named set of procedures served on every port.
type Module struct {
	name     string
	handlers []handler
}

// NewModule creates an empty module.
//
// Example usage:
//
//	mod := rpc.NewModule("SocialService").
//	    Unary("GetFriends", getFriends).
//	    Streaming("SubscribeToBlockUpdates", blockUpdates)
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Unary adds a unary procedure.
func (m *Module) Unary(name string, h UnaryHandler) *Module {
	m.handlers = append(m.handlers, handler{name: name, unary: h})
	return m
}

// Streaming adds a server-streaming procedure.
func (m *Module) Streaming(name string, h StreamHandler) *Module {
	m.handlers = append(m.handlers, handler{name: name, stream: h})
	return m
}

// ServerConfig configures an RPC server. Authenticate is optional; when set
// every connection must open with a header frame that it accepts.
type ServerConfig struct {
	Addr            string
	Path            string
	RateLimitConfig *websocket.RateLimitConfig
	CheckOrigin     websocket.CheckOriginFn
	Authenticate    AuthenticateFn

	// OnSessionReady is called once a session is authenticated, or right
	// after the handshake when Authenticate is nil. OnSessionEnd is called
	// when a ready session disconnects.
	OnSessionReady SessionFn
	OnSessionEnd   SessionFn

	Logger *zap.Logger
}

// Server serves registered modules over WebSocket.
type Server struct {
	cfg      *ServerConfig
	ws       *websocket.Server
	logger   *zap.Logger
	sessions sync.Map // map[string]*Session

	mu      sync.RWMutex
	modules map[string]*Module
}

// NewServer creates an RPC server. Modules are added with Register.
func NewServer(cfg *ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		modules: make(map[string]*Module),
	}

	s.ws = websocket.NewServer(&websocket.ServerConfig{
		Addr:            cfg.Addr,
		Path:            cfg.Path,
		RateLimitConfig: cfg.RateLimitConfig,
		CheckOrigin:     cfg.CheckOrigin,
		Logger:          logger,
		OnConnect:       s.onConnect,
		OnFrame:         s.onFrame,
		OnDisconnect:    s.onDisconnect,
	})
	return s
}

// Register makes a module loadable. Registering a name twice replaces the
// previous module.
func (s *Server) Register(m *Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.name] = m
}

// Handler returns the upgrade handler.
func (s *Server) Handler() http.Handler {
	return s.ws.Handler()
}

// Start listens on the configured address.
func (s *Server) Start(ctx context.Context) error {
	return s.ws.Start(ctx)
}

// Stop closes every session and the listener.
func (s *Server) Stop(ctx context.Context) error {
	return s.ws.Stop(ctx)
}

func (s *Server) module(name string) (*Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[name]
	return m, ok
}

func (s *Server) onConnect(conn *websocket.Conn) {
	sess := &Session{
		conn:          conn,
		logger:        s.logger.With(zap.String("conn_id", conn.ID())),
		authenticated: s.cfg.Authenticate == nil,
		ports:         make(map[uint32]*serverPort),
		streams:       make(map[uint32]*openStream),
	}
	s.sessions.Store(conn.ID(), sess)

	if sess.authenticated && s.cfg.OnSessionReady != nil {
		s.cfg.OnSessionReady(sess)
	}
}

func (s *Server) onDisconnect(conn *websocket.Conn, voluntary bool) {
	v, ok := s.sessions.LoadAndDelete(conn.ID())
	if !ok {
		return
	}
	sess := v.(*Session)
	sess.logger.Debug("session ended", zap.Bool("voluntary", voluntary))

	if sess.authenticated && s.cfg.OnSessionEnd != nil {
		s.cfg.OnSessionEnd(sess)
	}
}

// onFrame runs on the read loop of the connection. Frames of one connection
// are handled in order; procedures run in their own goroutines.
func (s *Server) onFrame(conn *websocket.Conn, data []byte) {
	v, ok := s.sessions.Load(conn.ID())
	if !ok {
		return
	}
	sess := v.(*Session)

	if !sess.authenticated {
		s.authenticate(sess, data)
		return
	}

	header, payload, err := protocol.Decode(data)
	if err != nil {
		sess.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch header.Type {
	case protocol.TypeCreatePort:
		s.createPort(sess, header.MessageNumber, payload)
	case protocol.TypeRequestModule:
		s.requestModule(sess, header.MessageNumber, payload)
	case protocol.TypeRequest:
		s.request(sess, header.MessageNumber, payload)
	case protocol.TypeStreamAck:
		sess.ack(header.MessageNumber, payload)
	default:
		sess.logger.Debug("ignoring frame", zap.Stringer("type", header.Type))
	}
}

func (s *Server) authenticate(sess *Session, data []byte) {
	var headers map[string]string
	if err := json.Unmarshal(data, &headers); err != nil {
		sess.logger.Warn("invalid auth frame", zap.Error(err))
		sess.conn.CloseWithCode(gorillaws.ClosePolicyViolation, "authentication required")
		return
	}

	address, err := s.cfg.Authenticate(headers)
	if err != nil {
		sess.logger.Warn("authentication rejected", zap.Error(err))
		sess.conn.CloseWithCode(gorillaws.ClosePolicyViolation, "authentication failed")
		return
	}

	sess.address = address
	sess.authenticated = true
	sess.logger = sess.logger.With(zap.String("address", address))
	sess.logger.Debug("session authenticated")

	if s.cfg.OnSessionReady != nil {
		s.cfg.OnSessionReady(sess)
	}
}

func (s *Server) createPort(sess *Session, number uint32, payload []byte) {
	var req createPort
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.fail(number, CodeBadRequest, err.Error())
		return
	}

	sess.mu.Lock()
	sess.nextPort++
	id := sess.nextPort
	sess.ports[id] = &serverPort{name: req.PortName, procedures: make(map[uint32]handler)}
	sess.mu.Unlock()

	sess.reply(number, protocol.TypeCreatePortResponse, createPortResponse{PortID: id})
}

func (s *Server) requestModule(sess *Session, number uint32, payload []byte) {
	var req requestModule
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.fail(number, CodeBadRequest, err.Error())
		return
	}

	m, ok := s.module(req.ModuleName)
	if !ok {
		sess.fail(number, CodeUnknownModule, fmt.Sprintf("%v: %s", ErrUnknownModule, req.ModuleName))
		return
	}

	sess.mu.Lock()
	port, ok := sess.ports[req.PortID]
	if !ok {
		sess.mu.Unlock()
		sess.fail(number, CodeUnknownPort, ErrUnknownPort.Error())
		return
	}

	resp := requestModuleResponse{PortID: req.PortID, ModuleName: m.name}
	for _, h := range m.handlers {
		port.nextProcedure++
		port.procedures[port.nextProcedure] = h
		resp.Procedures = append(resp.Procedures, procedure{ProcedureID: port.nextProcedure, ProcedureName: h.name})
	}
	sess.mu.Unlock()

	sess.reply(number, protocol.TypeRequestModuleResponse, resp)
}

func (s *Server) request(sess *Session, number uint32, payload []byte) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.fail(number, CodeBadRequest, err.Error())
		return
	}

	sess.mu.Lock()
	port, ok := sess.ports[req.PortID]
	var h handler
	if ok {
		h, ok = port.procedures[req.ProcedureID]
	}
	var st *openStream
	if ok && h.stream != nil {
		ctx, cancel := context.WithCancel(sess.conn.Context())
		st = &openStream{ctx: ctx, cancel: cancel, acks: make(chan streamAck, 1)}
		sess.streams[number] = st
	}
	sess.mu.Unlock()

	if !ok {
		sess.fail(number, CodeUnknownProcedure, ErrUnknownProcedure.Error())
		return
	}

	if h.unary != nil {
		go sess.serveUnary(sess.conn.Context(), number, h, req.Payload)
	} else {
		go sess.serveStream(st, number, req.PortID, h, req.Payload)
	}
}

// openStream is a streaming request in progress. Its context is cancelled
// when the caller closes the stream.
type openStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	acks   chan streamAck
}

type serverPort struct {
	name          string
	nextProcedure uint32
	procedures    map[uint32]handler
}

// Session is the server side state of one connection.
type Session struct {
	conn          *websocket.Conn
	logger        *zap.Logger
	authenticated bool
	address       string

	mu       sync.Mutex
	nextPort uint32
	ports    map[uint32]*serverPort
	streams  map[uint32]*openStream
}

// Address returns the authenticated caller address, or "" when the server
// runs without authentication.
func (s *Session) Address() string {
	return s.address
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.conn.ID()
}

func (s *Session) reply(number uint32, msgType protocol.MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	frame, err := protocol.Encode(msgType, number, data)
	if err != nil {
		s.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	if err := s.conn.Send(s.conn.Context(), frame); err != nil {
		s.logger.Debug("failed to send reply", zap.Error(err))
	}
}

func (s *Session) fail(number uint32, code int, message string) {
	s.reply(number, protocol.TypeRemoteError, RemoteError{Code: code, Message: message})
}

func (s *Session) serveUnary(ctx context.Context, number uint32, h handler, payload json.RawMessage) {
	result, err := h.unary(ctx, s, payload)
	if err != nil {
		s.logger.Debug("procedure failed", zap.String("procedure", h.name), zap.Error(err))
		s.fail(number, CodeProcedureFailed, err.Error())
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.fail(number, CodeProcedureFailed, err.Error())
		return
	}
	s.reply(number, protocol.TypeResponse, response{Payload: data})
}

func (s *Session) serveStream(st *openStream, number, portID uint32, h handler, payload json.RawMessage) {
	ctx := st.ctx
	defer func() {
		st.cancel()
		s.mu.Lock()
		delete(s.streams, number)
		s.mu.Unlock()
	}()

	var seq uint32
	send := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		seq++
		s.reply(number, protocol.TypeStreamMessage, streamMessage{PortID: portID, SequenceID: seq, Payload: data})

		select {
		case ack := <-st.acks:
			if ack.Closed {
				return errStreamClosed
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := h.stream(ctx, s, payload, send)
	switch {
	case errors.Is(err, errStreamClosed), ctx.Err() != nil:
		return
	case err != nil:
		s.logger.Debug("stream failed", zap.String("procedure", h.name), zap.Error(err))
		s.fail(number, CodeProcedureFailed, err.Error())
	default:
		s.reply(number, protocol.TypeStreamMessage, streamMessage{PortID: portID, SequenceID: seq + 1, Closed: true})
	}
}

// ack hands a StreamAck to the stream waiting on it. A closing ack cancels
// the producer. Acks for unknown or finished streams are dropped.
func (s *Session) ack(number uint32, payload []byte) {
	var ack streamAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		s.logger.Warn("invalid stream ack", zap.Error(err))
		return
	}

	s.mu.Lock()
	st, ok := s.streams[number]
	s.mu.Unlock()
	if !ok {
		return
	}

	if ack.Closed {
		st.cancel()
	}
	select {
	case st.acks <- ack:
	default:
	}
}
