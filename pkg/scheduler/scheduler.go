// Package scheduler provides the cron-based task scheduler collaborator.
// The application constructs it from merged scheduler configuration and ties
// its lifecycle to the lifespan events.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/verve-web/verve/pkg/errs"
	"go.uber.org/zap"
)

// Task is a scheduled job with a cron spec.
type Task struct {
	// Name identifies the task in logs.
	Name string

	// Spec is a cron expression in the standard five-field format.
	Spec string

	// Job is the work to run. Failures are logged, not retried.
	Job func(ctx context.Context) error
}

// Config defines the scheduler configuration.
type Config struct {
	// Timezone for cron evaluation. Falls back to the application timezone,
	// then UTC.
	Timezone string

	// Tasks to schedule.
	Tasks []Task
}

// Scheduler runs the configured tasks on their cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds a scheduler from the merged configuration. An unknown timezone
// or an invalid cron spec is a configuration error and aborts application
// construction.
func New(config *Config, appTimezone string, logger *zap.Logger) (*Scheduler, error) {
	if config == nil {
		config = &Config{}
	}

	tz := config.Timezone
	if tz == "" {
		tz = appTimezone
	}
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errs.ImproperlyConfigured("unknown scheduler timezone %q: %v", tz, err)
	}

	c := cron.New(cron.WithLocation(loc))
	for _, task := range config.Tasks {
		task := task
		_, err := c.AddFunc(task.Spec, func() {
			if err := task.Job(context.Background()); err != nil {
				logger.Error("Scheduled task failed",
					zap.String("task", task.Name),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			return nil, errs.ImproperlyConfigured("invalid cron spec %q for task %q: %v", task.Spec, task.Name, err)
		}
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.logger.Debug("Scheduler starting")
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish, or for the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
