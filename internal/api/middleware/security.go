package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig selects the headers set on every response.
type SecurityConfig struct {
	// NoCachePrefixes are path prefixes whose responses must never be cached.
	NoCachePrefixes []string
	// CatalogPrefixes are path prefixes that may be cached briefly by browsers.
	CatalogPrefixes []string
	// CatalogMaxAge is the max-age in seconds for catalog responses.
	CatalogMaxAge string
}

// DefaultSecurityConfig keeps status endpoints uncached and lets catalog pages live for a minute.
var DefaultSecurityConfig = SecurityConfig{
	NoCachePrefixes: []string{"/api/v1/status", "/api/v1/health", "/api/v1/scheduler", "/api/v1/logs", "/metrics"},
	CatalogPrefixes: []string{"/api/v1/"},
	CatalogMaxAge:   "60",
}

func SecurityHeaders() echo.MiddlewareFunc {
	return SecurityHeadersWithConfig(DefaultSecurityConfig)
}

func SecurityHeadersWithConfig(cfg SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Content-Security-Policy", "frame-ancestors 'self'")

			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			path := c.Request().URL.Path
			switch {
			case hasAnyPrefix(path, cfg.NoCachePrefixes):
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			case hasAnyPrefix(path, cfg.CatalogPrefixes):
				h.Set("Cache-Control", "public, max-age="+cfg.CatalogMaxAge)
			}

			return next(c)
		}
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
