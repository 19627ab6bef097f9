package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_CachePolicy(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/v1/anime", ok)
	e.GET("/api/v1/status", ok)
	e.GET("/health", ok)

	tests := []struct {
		path  string
		cache string
	}{
		{"/api/v1/anime", "public, max-age=60"},
		{"/api/v1/status", "no-store, no-cache, must-revalidate, private"},
		{"/health", ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

		if got := rec.Header().Get("Cache-Control"); got != tt.cache {
			t.Errorf("%s Cache-Control = %q, want %q", tt.path, got, tt.cache)
		}
		if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("%s X-Content-Type-Options = %q", tt.path, got)
		}
	}
}
