package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/animescout/animescout/internal/api/middleware"
	"github.com/animescout/animescout/internal/api/ratelimit"
	"github.com/animescout/animescout/internal/browse"
	"github.com/animescout/animescout/internal/config"
	"github.com/animescout/animescout/internal/health"
	"github.com/animescout/animescout/internal/jikan"
	jikanlimit "github.com/animescout/animescout/internal/jikan/ratelimit"
	"github.com/animescout/animescout/internal/logger"
	"github.com/animescout/animescout/internal/metrics"
	"github.com/animescout/animescout/internal/scheduler"
	"github.com/animescout/animescout/internal/websocket"
)

// Catalog is the upstream the REST endpoints read from.
type Catalog interface {
	browse.Client
	browse.GenreSource
	Name() string
	Test(ctx context.Context) error
	GetAnime(ctx context.Context, id int) (*jikan.NormalizedAnimeDetail, error)
	GetAnimeCharacters(ctx context.Context, id int) ([]jikan.NormalizedCastMember, error)
	GetCharacter(ctx context.Context, id int) (*jikan.NormalizedCharacter, error)
	GetPersonVoices(ctx context.Context, id int) ([]jikan.NormalizedVoiceRole, error)
}

// LogSource serves recently logged warnings and errors.
type LogSource interface {
	RecentLogs(limit int) []logger.LogEntry
}

// Dependencies are the services the server exposes. Only Catalog is required;
// routes for the others report empty state when unset.
type Dependencies struct {
	Catalog   Catalog
	Genres    *browse.GenreCatalog
	Hub       *websocket.Hub
	Limiter   *jikanlimit.Limiter
	Health    *health.Service
	Scheduler *scheduler.Scheduler
	Metrics   *metrics.Metrics
	Logs      LogSource
	Clock     clockwork.Clock
}

// Server handles HTTP requests for the AnimeScout API.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	logger    zerolog.Logger
	clock     clockwork.Clock
	startTime time.Time

	catalog   Catalog
	genres    *browse.GenreCatalog
	hub       *websocket.Hub
	limiter   *jikanlimit.Limiter
	health    *health.Service
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	logs      LogSource
	ipLimiter *ratelimit.IPLimiter
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	genres := deps.Genres
	if genres == nil {
		genres = browse.NewGenreCatalog(deps.Catalog, clock, logger)
	}

	s := &Server{
		echo:      e,
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
		clock:     clock,
		startTime: clock.Now(),
		catalog:   deps.Catalog,
		genres:    genres,
		hub:       deps.Hub,
		limiter:   deps.Limiter,
		health:    deps.Health,
		scheduler: deps.Scheduler,
		metrics:   m,
		logs:      deps.Logs,
		ipLimiter: ratelimit.NewIPLimiter(cfg.Server.RequestsPerMinute, clock),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())
	s.echo.Use(middleware.BodyLimit("64K"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be mounted directly in tests and other muxes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// CleanupLimiter drops expired per-IP windows.
func (s *Server) CleanupLimiter() {
	s.ipLimiter.Cleanup()
}
