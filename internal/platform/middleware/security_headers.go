package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// SecurityConfig tunes SecurityHeaders. A zero HSTSMaxAge omits
// Strict-Transport-Security, for plain-HTTP development servers.
type SecurityConfig struct {
	HSTSMaxAge time.Duration
}

// DefaultSecurityConfig pins HTTPS for one year.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{HSTSMaxAge: 365 * 24 * time.Hour}
}

// SecurityHeaders sets response headers for a JSON API that returns
// patient data.
func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	hsts := ""
	if cfg.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.FormatInt(int64(cfg.HSTSMaxAge/time.Second), 10) + "; includeSubDomains"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}

			// Alert payloads must not be cached by browsers or proxies.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
