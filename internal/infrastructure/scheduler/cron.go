package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"trendsurf/internal/config"
	"trendsurf/internal/ports"
)

// CronScheduler runs the pipeline on a cron expression in the configured
// timezone.
type CronScheduler struct {
	expression string
	location   *time.Location
	logger     *slog.Logger
	cron       *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from configuration.
func NewCronScheduler(cfg config.SchedulerConfig, logger *slog.Logger) *CronScheduler {
	return &CronScheduler{
		expression: cfg.CronExpression,
		location:   cfg.Location(),
		logger:     logger,
	}
}

// Start registers the job and launches the cron loop. The job receives the
// scheduled trigger time.
func (s *CronScheduler) Start(_ context.Context, job func(time.Time)) error {
	s.cron = cron.New(cron.WithLocation(s.location))

	if _, err := s.cron.AddFunc(s.expression, func() {
		job(time.Now().In(s.location))
	}); err != nil {
		return fmt.Errorf("register cron job %q: %w", s.expression, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("expression", s.expression),
		slog.String("timezone", s.location.String()))
	return nil
}

// Stop halts scheduling and waits for a running job to finish, bounded by the
// caller's context.
func (s *CronScheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
