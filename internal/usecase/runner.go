package usecase

import (
	"context"
	"log/slog"
	"time"

	"trendsurf/internal/ports"
)

const jobName = "ingest_papers"

// Runner binds the pipeline to the scheduler and records each run's outcome.
type Runner struct {
	scheduler ports.Scheduler
	pipeline  *Pipeline
	jobs      ports.JobRepository
	logger    *slog.Logger
}

// NewRunner wires the runner.
func NewRunner(scheduler ports.Scheduler, pipeline *Pipeline, jobs ports.JobRepository, logger *slog.Logger) *Runner {
	return &Runner{scheduler: scheduler, pipeline: pipeline, jobs: jobs, logger: logger}
}

// Start launches scheduled execution. Each trigger runs the pipeline and
// upserts the job's last status.
func (r *Runner) Start(ctx context.Context) error {
	return r.scheduler.Start(ctx, func(trigger time.Time) {
		r.RunOnce(ctx, trigger)
	})
}

// RunOnce executes a single pipeline run at the given trigger time.
func (r *Runner) RunOnce(ctx context.Context, trigger time.Time) {
	r.logger.Info("pipeline run started", slog.Time("trigger", trigger))

	err := r.pipeline.ProcessTopics(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		r.logger.Error("pipeline run failed", slog.Any("error", err))
	} else {
		r.logger.Info("pipeline run finished")
	}

	if recordErr := r.jobs.RecordRun(ctx, jobName, trigger, status, err); recordErr != nil {
		r.logger.Warn("job status not recorded", slog.Any("error", recordErr))
	}
}

// Stop shuts the scheduler down.
func (r *Runner) Stop(ctx context.Context) error {
	return r.scheduler.Stop(ctx)
}
