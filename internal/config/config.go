// Package config loads the socialctl configuration: a YAML file overlaid by
// SOCIALCTL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/luciancaetano/socialnet/internal/websocket"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SOCIALCTL_"

var ErrMissingAccountKey = errors.New("account key is required")

type RateLimit struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
	Enabled           bool    `yaml:"enabled"`
}

// Mock configures `socialctl serve-mock`.
type Mock struct {
	Addr     string `yaml:"addr"`
	Path     string `yaml:"path"`
	PageSize int    `yaml:"page_size"`
	// Signed selects the signed-header contract for sessions. The legacy
	// contract authenticates per request and needs it off.
	Signed bool `yaml:"signed"`
}

type Config struct {
	URL              string        `yaml:"url"`
	SynapseURL       string        `yaml:"synapse_url"`
	AccountKey       string        `yaml:"account_key"`
	IdentityTTL      time.Duration `yaml:"identity_ttl"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Legacy           bool          `yaml:"legacy"`
	LogLevel         string        `yaml:"log_level"`
	RateLimit        RateLimit     `yaml:"rate_limit"`
	Mock             Mock          `yaml:"mock"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	rl := websocket.DefaultRateLimitConfig()
	return &Config{
		URL:              "ws://localhost:8085",
		SynapseURL:       "http://localhost:8086",
		IdentityTTL:      24 * time.Hour,
		HandshakeTimeout: 10 * time.Second,
		LogLevel:         "info",
		RateLimit: RateLimit{
			MessagesPerSecond: float64(rl.MessagesPerSecond),
			Burst:             rl.Burst,
			Enabled:           rl.Enabled,
		},
		Mock: Mock{
			Addr:     ":8085",
			PageSize: 50,
			Signed:   true,
		},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	fields := map[string]*string{
		"URL":         &c.URL,
		"SYNAPSE_URL": &c.SynapseURL,
		"ACCOUNT_KEY": &c.AccountKey,
		"LOG_LEVEL":   &c.LogLevel,
		"MOCK_ADDR":   &c.Mock.Addr,
	}
	for name, field := range fields {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}

	if v, ok := lookup(EnvPrefix + "IDENTITY_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sIDENTITY_TTL: %w", EnvPrefix, err)
		}
		c.IdentityTTL = ttl
	}
	if v, ok := lookup(EnvPrefix + "LEGACY"); ok {
		legacy, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLEGACY: %w", EnvPrefix, err)
		}
		c.Legacy = legacy
	}
	return nil
}

// Validate checks the fields every client command needs.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if c.AccountKey == "" {
		return ErrMissingAccountKey
	}
	if c.Legacy && c.SynapseURL == "" {
		return errors.New("synapse_url is required for the legacy contract")
	}
	if c.IdentityTTL <= 0 {
		return fmt.Errorf("identity_ttl must be positive, got %s", c.IdentityTTL)
	}
	return nil
}

// RateLimitConfig converts the rate limit section.
func (c *Config) RateLimitConfig() *websocket.RateLimitConfig {
	if !c.RateLimit.Enabled {
		return websocket.NoRateLimit()
	}
	return &websocket.RateLimitConfig{
		MessagesPerSecond: rate.Limit(c.RateLimit.MessagesPerSecond),
		Burst:             c.RateLimit.Burst,
		Enabled:           true,
	}
}

// Logger builds a console logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
