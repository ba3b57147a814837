// Package social is the entry point of the library: it builds ready social
// clients for both contract versions.
package social

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/contract/friendships"
	"github.com/luciancaetano/socialnet/contract/socialv2"
	"github.com/luciancaetano/socialnet/internal/auth"
	"github.com/luciancaetano/socialnet/internal/client"
	"github.com/luciancaetano/socialnet/internal/metrics"
	"github.com/luciancaetano/socialnet/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig

// Identity signs auth chains for the caller's account.
type Identity = auth.Identity

// Config configures a client of the signed-header contract.
type Config struct {
	// URL is the WebSocket endpoint of the social service.
	URL string

	Identity Identity

	// HandshakeTimeout bounds the WebSocket handshake. Defaults to 10s.
	HandshakeTimeout time.Duration

	// Header is sent with the WebSocket handshake.
	Header http.Header

	// RateLimitConfig bounds outgoing calls. nil disables limiting.
	RateLimitConfig *RateLimitConfig

	// Registerer receives the client metrics. nil leaves them unregistered.
	Registerer prometheus.Registerer

	Logger *zap.Logger
}

// NewConfig returns a Config with defaults for url and identity.
func NewConfig(url string, identity Identity) *Config {
	return &Config{
		URL:              url,
		Identity:         identity,
		HandshakeTimeout: websocket.DefaultTransportConfig().HandshakeTimeout,
	}
}

// LegacyConfig configures a client of the bearer-token contract.
type LegacyConfig struct {
	Config

	// SynapseURL is the base URL of the login server.
	SynapseURL string

	// HTTPClient performs the login exchange. nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// NewLegacyConfig returns a LegacyConfig with defaults.
func NewLegacyConfig(url, synapseURL string, identity Identity) *LegacyConfig {
	return &LegacyConfig{Config: *NewConfig(url, identity), SynapseURL: synapseURL}
}

// New creates a client of the signed-header contract. Nothing happens on the
// network until Connect.
//
// Example:
//
//	identity, _ := social.NewIdentity(accountKey, 24*time.Hour)
//	client := social.New(social.NewConfig("wss://rpc-social.example.org", identity))
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
func New(cfg *Config) socialnet.SocialClient {
	logger := loggerOf(cfg)
	return client.NewSocial(newSession(cfg, &auth.SignedHeaders{Identity: cfg.Identity, Logger: logger}, socialv2.ServiceName))
}

// NewLegacy logs in to the synapse server, opens the session and returns a
// ready client of the bearer-token contract. A failed login is returned as a
// *socialnet.AuthenticationError.
func NewLegacy(ctx context.Context, cfg *LegacyConfig) (socialnet.LegacyClient, error) {
	authenticator := &auth.Bearer{
		Endpoint:   cfg.SynapseURL,
		Identity:   cfg.Identity,
		HTTPClient: cfg.HTTPClient,
		Logger:     loggerOf(&cfg.Config),
	}
	return client.OpenLegacy(ctx, newSession(&cfg.Config, authenticator, friendships.ServiceName))
}

func newSession(cfg *Config, authenticator auth.Authenticator, service string) *client.Session {
	logger := loggerOf(cfg)

	transport := websocket.NewTransport(cfg.URL, &websocket.TransportConfig{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Header:           cfg.Header,
		SendBuffer:       websocket.DefaultTransportConfig().SendBuffer,
		Logger:           logger,
	})

	return client.NewSession(client.Config{
		Transport:       transport,
		Authenticator:   authenticator,
		Runtime:         client.RPCRuntime(logger),
		ServiceName:     service,
		RateLimitConfig: cfg.RateLimitConfig,
		Metrics:         metrics.New(cfg.Registerer),
		Logger:          logger,
	})
}

func loggerOf(cfg *Config) *zap.Logger {
	if cfg.Logger == nil {
		return zap.NewNop()
	}
	return cfg.Logger
}

// NewIdentity creates an identity that delegates from the hex encoded
// account key to a fresh ephemeral key for ttl.
func NewIdentity(accountKey string, ttl time.Duration) (Identity, error) {
	identity, err := auth.NewIdentityFromHex(accountKey, ttl)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// NewIdentityFromKey is NewIdentity for a parsed account key.
func NewIdentityFromKey(accountKey *ecdsa.PrivateKey, ttl time.Duration) (Identity, error) {
	identity, err := auth.NewIdentity(accountKey, ttl)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// DefaultRateLimitConfig allows 100 calls per second with a burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit disables outgoing call limiting.
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
