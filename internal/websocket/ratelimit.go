package websocket

import "golang.org/x/time/rate"

// RateLimitConfig is a token bucket shared by both ends of the session: the
// server applies it to incoming frames per connection, the client to outgoing
// calls.
type RateLimitConfig struct {
	// MessagesPerSecond is the refill rate of the bucket.
	MessagesPerSecond rate.Limit
	// Burst is the bucket capacity.
	Burst int
	// Enabled turns limiting on.
	Enabled bool
}

// DefaultRateLimitConfig allows 100 messages per second with a burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit disables limiting.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{}
}

// NewLimiter returns a fresh bucket, or nil when c is nil or disabled.
func (c *RateLimitConfig) NewLimiter() *rate.Limiter {
	if c == nil || !c.Enabled {
		return nil
	}
	return rate.NewLimiter(c.MessagesPerSecond, c.Burst)
}
