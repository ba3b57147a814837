// Package mockserver is an in-memory implementation of both social service
// contracts, served over the RPC runtime. It backs `socialctl serve-mock`
// and the end-to-end tests.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet/contract"
	"github.com/luciancaetano/socialnet/contract/friendships"
	"github.com/luciancaetano/socialnet/contract/socialv2"
	"github.com/luciancaetano/socialnet/internal/auth"
	"github.com/luciancaetano/socialnet/internal/rpc"
)

// Config configures the mock service. The zero value is usable.
type Config struct {
	// PageSize is the number of users per page of the legacy friends
	// streams. Defaults to 50.
	PageSize int

	// HeaderMaxAge bounds the age of signed headers. Defaults to
	// auth.DefaultHeaderMaxAge.
	HeaderMaxAge time.Duration

	Now    func() time.Time
	Logger *zap.Logger
}

// Service holds the social graph and the event hubs of the streams.
type Service struct {
	cfg    Config
	logger *zap.Logger
	graph  *graph

	friendshipUpdates *hub[socialv2.FriendshipUpdate]
	blockUpdates      *hub[socialv2.BlockUpdate]
	connectivity      *hub[socialv2.FriendConnectivityUpdate]
	legacyEvents      *hub[friendships.FriendshipEventResponse]

	mu     sync.Mutex
	tokens map[string]string
	online map[string]int
}

// New creates an empty service.
func New(cfg *Config) *Service {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.HeaderMaxAge <= 0 {
		c.HeaderMaxAge = auth.DefaultHeaderMaxAge
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &Service{
		cfg:               c,
		logger:            c.Logger,
		graph:             newGraph(c.Now),
		friendshipUpdates: newHub[socialv2.FriendshipUpdate](),
		blockUpdates:      newHub[socialv2.BlockUpdate](),
		connectivity:      newHub[socialv2.FriendConnectivityUpdate](),
		legacyEvents:      newHub[friendships.FriendshipEventResponse](),
		tokens:            make(map[string]string),
		online:            make(map[string]int),
	}
}

// Register adds both contracts to server.
func (s *Service) Register(server *rpc.Server) {
	server.Register(s.SocialModule())
	server.Register(s.FriendshipsModule())
}

// ServerConfig returns an RPC server configuration wired to the service:
// signed-header authentication when signed is true, presence tracking
// for connectivity updates.
func (s *Service) ServerConfig(addr string, signed bool) *rpc.ServerConfig {
	cfg := &rpc.ServerConfig{
		Addr:           addr,
		OnSessionReady: s.sessionReady,
		OnSessionEnd:   s.sessionEnd,
		Logger:         s.logger,
	}
	if signed {
		cfg.Authenticate = s.Authenticate
	}
	return cfg
}

// SetProfileName gives address a claimed name shown in profiles.
func (s *Service) SetProfileName(address, name string) {
	s.graph.setName(address, name)
}

// Authenticate verifies the signed header frame of a session.
func (s *Service) Authenticate(headers map[string]string) (string, error) {
	address, err := auth.VerifyHeaders(headers, http.MethodGet, "/", s.cfg.Now(), s.cfg.HeaderMaxAge)
	if err != nil {
		return "", err
	}
	return normalize(address), nil
}

// IssueToken creates a synapse token for address, as a successful login
// would.
func (s *Service) IssueToken(address, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = normalize(address)
}

// RevokeToken forgets token. It reports whether the token was known.
func (s *Service) RevokeToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	delete(s.tokens, token)
	return ok
}

// Subscribers returns the number of open update streams of address.
func (s *Service) Subscribers(address string) int {
	return s.friendshipUpdates.subscribers(address) +
		s.blockUpdates.subscribers(address) +
		s.connectivity.subscribers(address) +
		s.legacyEvents.subscribers(address)
}

func (s *Service) tokenOwner(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	address, ok := s.tokens[token]
	return address, ok
}

func (s *Service) sessionReady(sess *rpc.Session) {
	address := normalize(sess.Address())
	if address == "" {
		return
	}

	s.mu.Lock()
	s.online[address]++
	first := s.online[address] == 1
	s.mu.Unlock()

	if first {
		s.publishConnectivity(address, socialv2.ConnectivityOnline)
	}
}

func (s *Service) sessionEnd(sess *rpc.Session) {
	address := normalize(sess.Address())
	if address == "" {
		return
	}

	s.mu.Lock()
	s.online[address]--
	last := s.online[address] <= 0
	if last {
		delete(s.online, address)
	}
	s.mu.Unlock()

	if last {
		s.publishConnectivity(address, socialv2.ConnectivityOffline)
	}
}

func (s *Service) isOnline(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[address] > 0
}

func (s *Service) publishConnectivity(address string, status socialv2.ConnectivityStatus) {
	update := socialv2.FriendConnectivityUpdate{Friend: s.profile(address), Status: status}
	for _, friend := range s.graph.friendsOf(address) {
		s.connectivity.publish(friend, update)
	}
}

func (s *Service) profile(address string) contract.FriendProfile {
	name := s.graph.name(address)
	return contract.FriendProfile{Address: address, Name: name, HasClaimedName: name != ""}
}

func badRequest(err error) contract.Errors {
	return contract.Errors{BadRequestError: &contract.ErrorMessage{Message: err.Error()}}
}

func unauthorized(message string) contract.Errors {
	return contract.Errors{UnauthorizedError: &contract.ErrorMessage{Message: message}}
}

// envelope maps a graph error to the error variant a client observes.
func envelope(err error) contract.Errors {
	if errors.Is(err, errBlocked) {
		return contract.Errors{ForbiddenError: &contract.ErrorMessage{Message: err.Error()}}
	}
	return badRequest(err)
}

// decode reads a request payload. An empty payload is the zero request.
func decode[Req any](payload json.RawMessage) (Req, error) {
	var req Req
	if len(payload) == 0 {
		return req, nil
	}
	err := json.Unmarshal(payload, &req)
	return req, err
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// paginate returns one page of items. A nil pagination returns everything.
func paginate[T any](items []T, p *contract.Pagination) ([]T, *contract.PaginationData) {
	total := len(items)
	if p == nil || p.Limit <= 0 {
		return items, &contract.PaginationData{Total: total, Page: 1}
	}

	start := min(max(p.Offset, 0), total)
	end := min(start+p.Limit, total)
	return items[start:end], &contract.PaginationData{Total: total, Page: start/p.Limit + 1}
}

// subscribe streams events for address until the caller stops the stream.
func subscribe[T any](ctx context.Context, h *hub[T], address string, send func(any) error) error {
	events, cancel := h.subscribe(address)
	defer cancel()
	return pump(ctx, events, send)
}
