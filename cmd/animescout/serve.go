package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/animescout/animescout/internal/api"
	"github.com/animescout/animescout/internal/browse"
	"github.com/animescout/animescout/internal/config"
	"github.com/animescout/animescout/internal/health"
	"github.com/animescout/animescout/internal/metrics"
	"github.com/animescout/animescout/internal/scheduler"
	"github.com/animescout/animescout/internal/scheduler/tasks"
	"github.com/animescout/animescout/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var mockCatalog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and browse sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if mockCatalog {
				cfg.Jikan.Mock = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().BoolVar(&mockCatalog, "mock", false, "Serve the built-in catalog instead of calling Jikan")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting AnimeScout")

	catalog, limiter := newCatalog(cfg.Jikan, log.Logger)
	genres := browse.NewGenreCatalog(catalog, nil, log.Logger)
	m := metrics.New()
	healthSvc := health.NewService(log.Logger)

	factory := func(flow browse.Flow, listener func(browse.View)) *browse.Controller {
		return browse.NewController(browse.Options{
			Flow:        flow,
			Client:      catalog,
			Genres:      genres,
			FilterDelay: cfg.Browse.FilterDelay,
			TextDelay:   cfg.Browse.TextDelay,
			Recorder:    m,
			Logger:      log.Logger,
			Listener:    listener,
		})
	}

	hub := websocket.NewHub(factory, m, log.Logger)
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)
	healthSvc.SetBroadcaster(hub)

	sched, err := scheduler.New(log.Logger, nil)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg, api.Dependencies{
		Catalog:   catalog,
		Genres:    genres,
		Hub:       hub,
		Limiter:   limiter,
		Health:    healthSvc,
		Scheduler: sched,
		Metrics:   m,
		Logs:      log,
	}, log.Logger)

	if cfg.Health.Enabled {
		if _, err := tasks.RegisterJikanHealthTask(sched, catalog, healthSvc, m, &cfg.Health, &log.Logger); err != nil {
			return err
		}
	}
	if err := tasks.RegisterLimiterCleanupTask(sched, server, &log.Logger); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	cancelHub()

	log.Info().Msg("server stopped")
	return runErr
}
