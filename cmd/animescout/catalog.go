package main

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/animescout/animescout/internal/api"
	"github.com/animescout/animescout/internal/config"
	"github.com/animescout/animescout/internal/jikan"
	"github.com/animescout/animescout/internal/jikan/mock"
	"github.com/animescout/animescout/internal/jikan/ratelimit"
)

// newCatalog selects the live Jikan client behind the outbound budget, or the
// canned catalog when jikan.mock is set. The limiter is nil for the mock.
func newCatalog(cfg config.JikanConfig, log zerolog.Logger) (api.Catalog, *ratelimit.Limiter) {
	if cfg.Mock {
		log.Info().Msg("using mock catalog")
		return mock.NewClient(), nil
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		WindowLimit:       cfg.RequestsPerMinute,
		WindowPeriod:      time.Minute,
	}, nil, log)
	return jikan.NewClient(cfg, limiter, log), limiter
}
