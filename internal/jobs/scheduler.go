package jobs

import (
	"context"

	"content-market/internal/config"
	"content-market/pkg/logging"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	config config.Schedule
}

// NewScheduler creates a new scheduler instance. A job still running when
// its next tick fires is skipped, and a panicking job is recovered.
func NewScheduler(jobs *Jobs, cfg config.Schedule) *Scheduler {
	cronLogger := cron.PrintfLogger(logging.Logger)
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. Jobs run with ctx
// and stop early when it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	entries := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"notification drain", s.config.Drain, s.jobs.DrainNotifications},
		{"notification retry", s.config.Retry, s.jobs.RetryNotifications},
		{"subscription expiry", s.config.Expiry, s.jobs.ExpireSubscriptions},
	}

	for _, e := range entries {
		run := e.run
		if _, err := s.cron.AddFunc(e.schedule, func() { run(ctx) }); err != nil {
			logging.Errorf("Failed to schedule %s job (%q): %v", e.name, e.schedule, err)
			return err
		}
		logging.Infof("Scheduled %s job: %s", e.name, e.schedule)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done when running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
