// Package client turns a transport, an authenticator and the RPC runtime into
// ready social service clients.
package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/auth"
	"github.com/luciancaetano/socialnet/internal/metrics"
	"github.com/luciancaetano/socialnet/internal/websocket"
)

// State is the bootstrap state of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config wires a Session. Transport, Authenticator and ServiceName are
// required.
type Config struct {
	Transport     socialnet.Transport
	Authenticator auth.Authenticator
	Runtime       RuntimeFactory
	ServiceName   string

	// RateLimitConfig bounds outgoing calls. nil disables limiting.
	RateLimitConfig *websocket.RateLimitConfig

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Session owns one transport and the service handle bootstrapped on it.
//
// State machine:
//
//	Idle → Connecting → Authenticating → Ready → Closed
//
// Any failure, and any transport close, leads to Closed. A Session is
// opened at most once.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter

	mu         sync.RWMutex
	state      State
	service    Service
	credential auth.Credential

	handlersMu   sync.Mutex
	onDisconnect []func()
	onError      []func(error)
}

// NewSession creates an idle session and subscribes to the transport events.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Runtime == nil {
		cfg.Runtime = RPCRuntime(logger)
	}

	s := &Session{
		cfg:    cfg,
		logger: logger.With(zap.String("transport_id", cfg.Transport.ID()), zap.String("service", cfg.ServiceName)),
	}
	s.limiter = cfg.RateLimitConfig.NewLimiter()

	cfg.Transport.OnClose(s.handleClose)
	cfg.Transport.OnError(s.handleError)
	return s
}

// Open runs the bootstrap: authenticate, connect, handshake with the
// runtime, open the "social" port, wait for the credential and load the
// service. A second Open returns ErrSessionUsed.
func (s *Session) Open(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return socialnet.ErrSessionUsed
	}
	s.state = StateConnecting
	s.mu.Unlock()

	defer func() {
		s.cfg.Metrics.ObserveSession(err)
		if err != nil {
			s.logger.Warn("session bootstrap failed", zap.Error(err))
			s.setState(StateClosed)
			s.cfg.Transport.Close()
		}
	}()

	dispatch, err := s.cfg.Authenticator.Authenticate(ctx, s.cfg.Transport)
	if err != nil {
		return err
	}

	// A credential obtained up front authenticates the session before the
	// socket is opened.
	select {
	case <-dispatch.Done():
		s.transition(StateConnecting, StateAuthenticating)
	default:
	}

	if err := s.cfg.Transport.Connect(ctx); err != nil {
		return err
	}
	if !s.transition(StateConnecting, StateAuthenticating) && s.State() != StateAuthenticating {
		return socialnet.ErrConnectionClosed
	}

	runtime, err := s.cfg.Runtime(ctx, s.cfg.Transport)
	if err != nil {
		return fmt.Errorf("rpc handshake: %w", err)
	}

	port, err := runtime.CreatePort(ctx, socialnet.ServicePortName)
	if err != nil {
		return err
	}

	credential, err := dispatch.Wait(ctx)
	if err != nil {
		return err
	}

	service, err := port.LoadModule(ctx, s.cfg.ServiceName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticating {
		return socialnet.ErrConnectionClosed
	}
	s.state = StateReady
	s.service = service
	s.credential = credential

	s.logger.Debug("session ready")
	return nil
}

// State returns the current bootstrap state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Credential returns the credential the session was opened with.
func (s *Session) Credential() auth.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Close closes the transport; in-flight calls fail with ErrConnectionClosed.
func (s *Session) Close() error {
	return s.cfg.Transport.Close()
}

// OnDisconnect registers a callback fired once when the connection closes.
func (s *Session) OnDisconnect(fn func()) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

// OnConnectionError registers a callback fired on every transport error.
func (s *Session) OnConnectionError(fn func(error)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.onError = append(s.onError, fn)
}

// ready returns the service handle, or why it is not usable.
func (s *Session) ready(ctx context.Context) (Service, error) {
	s.mu.RLock()
	state, service := s.state, s.service
	s.mu.RUnlock()

	switch state {
	case StateReady:
	case StateClosed:
		return nil, socialnet.ErrConnectionClosed
	default:
		return nil, socialnet.ErrSessionNotReady
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return service, nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) handleClose() {
	s.setState(StateClosed)
	s.logger.Debug("session closed")

	s.handlersMu.Lock()
	handlers := s.onDisconnect
	s.handlersMu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (s *Session) handleError(err error) {
	s.logger.Debug("transport error", zap.Error(err))

	s.handlersMu.Lock()
	handlers := s.onError
	s.handlersMu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}
