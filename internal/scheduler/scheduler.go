package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-etl/internal/weather"
)

// Runner executes one run of a feed.
type Runner interface {
	Run(ctx context.Context, feed weather.Feed) (weather.RunSummary, error)
}

// Job binds a feed to a cron expression.
type Job struct {
	Feed     weather.Feed
	Schedule string
}

// Scheduler triggers feed runs on their cron schedules.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	jobs      []Job
	timeout   time.Duration
}

// New creates a new Scheduler. Each run gets its own context bounded by
// timeout.
func New(jobs []Job, timeout time.Duration, runner Runner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SetMaxConcurrentJobs(len(jobs)+1, gocron.WaitMode)
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		jobs:      jobs,
		timeout:   timeout,
	}
}

// Start registers every job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		log.Println("scheduler: no feeds configured; nothing to schedule")
		return nil
	}

	for _, j := range s.jobs {
		if j.Schedule == "" {
			log.Printf("scheduler: %s has no schedule; skipping", j.Feed.Name)
			continue
		}
		job, err := s.scheduler.Cron(j.Schedule).Do(s.RunOnce, j.Feed)
		if err != nil {
			return err
		}
		// A run still going at the next tick skips that tick.
		job.SingletonMode()
		log.Printf("scheduler: %s scheduled with %q", j.Feed.Name, j.Schedule)
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce executes feed with the scheduler timeout and logs the outcome.
func (s *Scheduler) RunOnce(feed weather.Feed) {
	log.Printf("scheduler: running %s job", feed.Name)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, feed)
	switch {
	case errors.Is(err, weather.ErrRunInProgress):
		log.Printf("scheduler: %s still running; tick skipped", feed.Name)
	case err != nil:
		log.Printf("scheduler: %s run failed: %v", feed.Name, err)
	default:
		log.Printf("scheduler: completed %s job: %s, %d rows", feed.Name, summary.Status, summary.Rows)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
