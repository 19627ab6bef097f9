// Package ratelimit throttles inbound REST calls per client IP so a single caller
// cannot drain the shared upstream request budget.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

const DefaultIPWindowDuration = time.Minute

type ipBucket struct {
	count     int64
	resetTime time.Time
}

// IPLimiter counts requests per IP in fixed windows.
type IPLimiter struct {
	mu        sync.Mutex
	ipBuckets map[string]*ipBucket
	clock     clockwork.Clock

	ipLimit  int64
	ipWindow time.Duration
}

// NewIPLimiter allows limit requests per IP per minute. A nil clock selects the real clock.
func NewIPLimiter(limit int, clock clockwork.Clock) *IPLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IPLimiter{
		ipBuckets: make(map[string]*ipBucket),
		clock:     clock,
		ipLimit:   int64(limit),
		ipWindow:  DefaultIPWindowDuration,
	}
}

func (l *IPLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter := l.allow(c.RealIP())
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}

			return next(c)
		}
	}
}

// allow records a request for ip and reports whether it fits in the current window.
func (l *IPLimiter) allow(ip string) (bool, time.Duration) {
	if l.ipLimit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	bucket, exists := l.ipBuckets[ip]
	if !exists || !now.Before(bucket.resetTime) {
		l.ipBuckets[ip] = &ipBucket{
			count:     1,
			resetTime: now.Add(l.ipWindow),
		}
		return true, 0
	}

	if bucket.count >= l.ipLimit {
		return false, bucket.resetTime.Sub(now)
	}

	bucket.count++
	return true, 0
}

// Cleanup drops buckets whose window has ended.
func (l *IPLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for ip, bucket := range l.ipBuckets {
		if !now.Before(bucket.resetTime) {
			delete(l.ipBuckets, ip)
		}
	}
}

// Tracked returns the number of IPs with an open window.
func (l *IPLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ipBuckets)
}
