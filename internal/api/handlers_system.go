package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/animescout/animescout/internal/config"
	"github.com/animescout/animescout/internal/health"
	jikanlimit "github.com/animescout/animescout/internal/jikan/ratelimit"
	"github.com/animescout/animescout/internal/logger"
)

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version         string             `json:"version"`
	StartTime       string             `json:"startTime"`
	Uptime          string             `json:"uptime"`
	Catalog         string             `json:"catalog"`
	Sessions        int                `json:"sessions"`
	GenresFetchedAt *time.Time         `json:"genresFetchedAt,omitempty"`
	RateLimit       *jikanlimit.Status `json:"rateLimit,omitempty"`
	Health          *health.Summary    `json:"health,omitempty"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Version:   config.Version,
		StartTime: s.startTime.Format(time.RFC3339),
		Uptime:    s.clock.Since(s.startTime).Truncate(time.Second).String(),
		Catalog:   s.catalog.Name(),
	}
	if s.hub != nil {
		resp.Sessions = s.hub.ClientCount()
	}
	if fetched := s.genres.FetchedAt(); !fetched.IsZero() {
		resp.GenresFetchedAt = &fetched
	}
	if s.limiter != nil {
		status := s.limiter.Status()
		resp.RateLimit = &status
	}
	if s.health != nil {
		summary := s.health.GetSummary()
		resp.Health = &summary
	}
	return c.JSON(http.StatusOK, resp)
}

// getHealth reports tracked dependency health.
// GET /api/v1/health
func (s *Server) getHealth(c echo.Context) error {
	if s.health == nil {
		return c.JSON(http.StatusOK, health.Summary{Items: []health.Item{}})
	}
	return c.JSON(http.StatusOK, s.health.GetSummary())
}

// getLogs returns recent warnings and errors, oldest first.
// GET /api/v1/logs?limit=50
func (s *Server) getLogs(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	if s.logs == nil {
		return c.JSON(http.StatusOK, []logger.LogEntry{})
	}
	return c.JSON(http.StatusOK, s.logs.RecentLogs(limit))
}
