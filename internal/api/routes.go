package api

import (
	"github.com/labstack/echo/v4"

	"github.com/animescout/animescout/internal/api/handlers"
)

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}

	api := s.echo.Group("/api/v1")

	// System routes
	api.GET("/status", s.getStatus)
	api.GET("/health", s.getHealth)
	api.GET("/logs", s.getLogs)

	// Catalog routes share the per-IP budget
	catalog := api.Group("", s.ipLimiter.Middleware())
	catalog.GET("/genres", s.listGenres)
	catalog.GET("/anime", s.searchAnime)
	catalog.GET("/anime/:id", s.getAnime)
	catalog.GET("/anime/:id/characters", s.getAnimeCharacters)
	catalog.GET("/characters/:id", s.getCharacter)
	catalog.GET("/people/:id/voices", s.getPersonVoices)
	catalog.GET("/seasons", s.listSeason)
	catalog.GET("/top", s.listTop)

	if s.scheduler != nil {
		schedulerHandler := handlers.NewSchedulerHandler(s.scheduler)
		schedulerHandler.RegisterRoutes(api.Group("/scheduler"))
	}
}
