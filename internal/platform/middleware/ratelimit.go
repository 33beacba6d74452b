package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL evicts limiters for keys not seen in this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		IdleTTL:           10 * time.Minute,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds per-key limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	config    RateLimitConfig
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*limiterEntry),
		config:   cfg,
		now:      time.Now,
	}
}

func (s *rateLimiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.config.IdleTTL > 0 && now.Sub(s.lastSweep) > s.config.IdleTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > s.config.IdleTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *rateLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// rateLimitKey prefers the authenticated user and falls back to the client IP.
func rateLimitKey(c echo.Context) string {
	if id, ok := auth.IdentityFromContext(c.Request().Context()); ok {
		return "user:" + id.UserID.String()
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a rate limiting middleware. Mount it after the auth
// middleware so requests are keyed per user.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimitWithStore(newRateLimiterStore(cfg))
}

func rateLimitWithStore(store *rateLimiterStore) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(store.config.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lim := store.get(rateLimitKey(c))
			c.Response().Header().Set("X-RateLimit-Limit", limit)

			now := store.now()
			r := lim.ReserveN(now, 1)
			if !r.OK() {
				c.Response().Header().Set("Retry-After", "1")
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			if delay := r.DelayFrom(now); delay > 0 {
				r.CancelAt(now)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
