package scheduler

import (
	"context"
	"fmt"
	"time"

	"dealdrop/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

// Task is a unit of background work. The context is cancelled when the run
// exceeds its interval.
type Task func(ctx context.Context) error

type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *logger.Logger
}

func NewScheduler(log *logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
	}, nil
}

// Every registers task to run at a fixed interval. A run that is still going
// when the next one is due causes that next run to be skipped.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.wrap(name, interval, task)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.WithField("jobs", len(s.scheduler.Jobs())).Info("Background scheduler started")
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) wrap(name string, interval time.Duration, task Task) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		started := time.Now()
		log := s.logger.WithField("job", name)
		if err := task(ctx); err != nil {
			log.WithError(err).Error("Scheduled job failed")
			return
		}
		log.WithField("duration_ms", time.Since(started).Milliseconds()).Debug("Scheduled job finished")
	}
}
