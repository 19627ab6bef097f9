package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/animescout/animescout/internal/scheduler"
)

const LimiterCleanupID = "limiter-cleanup"

// LimiterCleaner drops expired per-IP request windows.
type LimiterCleaner interface {
	CleanupLimiter()
}

// RegisterLimiterCleanupTask prunes the inbound limiter every five minutes.
func RegisterLimiterCleanupTask(sched *scheduler.Scheduler, cleaner LimiterCleaner, logger *zerolog.Logger) error {
	subLogger := logger.With().Str("task", LimiterCleanupID).Logger()
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          LimiterCleanupID,
		Name:        "Limiter Cleanup",
		Description: "Drops expired per-IP request windows",
		Cron:        "*/5 * * * *",
		Func: func(ctx context.Context) error {
			cleaner.CleanupLimiter()
			subLogger.Debug().Msg("Pruned inbound limiter")
			return nil
		},
	})
}
