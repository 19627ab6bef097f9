package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/animescout/animescout/internal/config"
	"github.com/animescout/animescout/internal/health"
	"github.com/animescout/animescout/internal/jikan"
	"github.com/animescout/animescout/internal/scheduler"
)

// JikanHealthID identifies the upstream catalog in the health service and the scheduler.
const JikanHealthID = "jikan-health"

// Prober is the catalog connectivity check.
type Prober interface {
	Name() string
	Test(ctx context.Context) error
}

// UpstreamGauge records the probe outcome; implemented by metrics.Metrics.
type UpstreamGauge interface {
	SetUpstreamHealthy(ok bool)
}

// JikanHealthTask periodically probes the catalog and publishes its status.
type JikanHealthTask struct {
	prober Prober
	health *health.Service
	gauge  UpstreamGauge
	logger *zerolog.Logger
}

// NewJikanHealthTask creates a new catalog health check task.
func NewJikanHealthTask(prober Prober, healthSvc *health.Service, gauge UpstreamGauge, logger *zerolog.Logger) *JikanHealthTask {
	subLogger := logger.With().Str("task", JikanHealthID).Logger()
	healthSvc.RegisterItem(JikanHealthID, prober.Name())
	return &JikanHealthTask{
		prober: prober,
		health: healthSvc,
		gauge:  gauge,
		logger: &subLogger,
	}
}

// Run executes the health check. A rate-limited probe is a warning, anything else an error.
func (t *JikanHealthTask) Run(ctx context.Context) error {
	err := t.prober.Test(ctx)
	if t.gauge != nil {
		t.gauge.SetUpstreamHealthy(err == nil)
	}

	switch {
	case err == nil:
		t.health.ClearStatus(JikanHealthID)
		t.logger.Debug().Str("catalog", t.prober.Name()).Msg("Catalog health check passed")
		return nil
	case errors.Is(err, jikan.ErrRateLimited):
		t.health.SetWarning(JikanHealthID, "rate limited")
	default:
		t.health.SetError(JikanHealthID, err.Error())
	}

	t.logger.Warn().Err(err).Str("catalog", t.prober.Name()).Msg("Catalog health check failed")
	return fmt.Errorf("catalog health check: %w", err)
}

// RegisterJikanHealthTask registers the catalog health check with the scheduler.
func RegisterJikanHealthTask(
	sched *scheduler.Scheduler,
	prober Prober,
	healthSvc *health.Service,
	gauge UpstreamGauge,
	cfg *config.HealthConfig,
	logger *zerolog.Logger,
) (*JikanHealthTask, error) {
	task := NewJikanHealthTask(prober, healthSvc, gauge, logger)

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "*/15 * * * *"
	}

	err := sched.RegisterTask(scheduler.TaskConfig{
		ID:          JikanHealthID,
		Name:        "Jikan Health Check",
		Description: "Tests connectivity to the anime catalog",
		Cron:        cronExpr,
		RunOnStart:  true,
		Func:        task.Run,
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
