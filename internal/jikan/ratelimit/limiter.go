// Package ratelimit provides the outbound request budget for the Jikan API.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config defines rate limit configuration.
type Config struct {
	// RequestsPerSecond is the sustained token bucket rate.
	RequestsPerSecond float64
	// Burst is the token bucket size.
	Burst int
	// WindowLimit is the maximum number of requests allowed in WindowPeriod (0 disables).
	WindowLimit int
	// WindowPeriod is the window length for WindowLimit.
	WindowPeriod time.Duration
}

// DefaultConfig returns the limits published by Jikan for unauthenticated clients.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 3,
		Burst:             3,
		WindowLimit:       60,
		WindowPeriod:      time.Minute,
	}
}

// Limiter decides whether a request may be sent now. It never waits: callers
// that are over budget fail fast instead of queueing behind a retry.
type Limiter struct {
	bucket *rate.Limiter
	clock  clockwork.Clock
	logger zerolog.Logger
	config Config

	mu     sync.Mutex
	window windowBucket
}

// windowBucket tracks the request count for the current window.
type windowBucket struct {
	count     int
	resetTime time.Time
}

// Status is a snapshot of the limiter state.
type Status struct {
	WindowCount     int       `json:"windowCount"`
	WindowLimit     int       `json:"windowLimit"`
	WindowResetTime time.Time `json:"windowResetTime"`
	Limited         bool      `json:"limited"`
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config, clock clockwork.Clock, logger zerolog.Logger) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.WindowPeriod <= 0 {
		config.WindowPeriod = time.Minute
	}

	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		clock:  clock,
		logger: logger.With().Str("component", "rate-limiter").Logger(),
		config: config,
		window: windowBucket{resetTime: clock.Now().Add(config.WindowPeriod)},
	}
}

// Allow consumes one request from the budget, reporting false when over it.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rollWindow(now)

	if l.config.WindowLimit > 0 && l.window.count >= l.config.WindowLimit {
		l.logger.Warn().
			Int("count", l.window.count).
			Int("limit", l.config.WindowLimit).
			Time("resetTime", l.window.resetTime).
			Msg("Request window limit reached")
		return false
	}

	if !l.bucket.AllowN(now, 1) {
		l.logger.Debug().
			Float64("rate", l.config.RequestsPerSecond).
			Int("burst", l.config.Burst).
			Msg("Request rate limit reached")
		return false
	}

	l.window.count++
	return true
}

// Status returns the current window state.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindow(l.clock.Now())

	return Status{
		WindowCount:     l.window.count,
		WindowLimit:     l.config.WindowLimit,
		WindowResetTime: l.window.resetTime,
		Limited:         l.config.WindowLimit > 0 && l.window.count >= l.config.WindowLimit,
	}
}

// Reset clears the window and refills the bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.window = windowBucket{resetTime: now.Add(l.config.WindowPeriod)}
	l.bucket = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)

	l.logger.Info().Msg("Reset rate limits")
}

// rollWindow starts a new window once the current one has elapsed (must be called with lock held).
func (l *Limiter) rollWindow(now time.Time) {
	if now.After(l.window.resetTime) {
		l.window.count = 0
		l.window.resetTime = now.Add(l.config.WindowPeriod)
	}
}
