package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs periodic full resyncs. Missed filesystem events (network mounts, overflowed
// inotify queues) are picked up by the next resync.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
}

func New(log *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("cannot create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		log:       log.With(slog.String("item", "Scheduler")),
	}, nil
}

// ScheduleResync calls resync every interval, skipping a tick while the previous call runs.
func (s *Scheduler) ScheduleResync(interval time.Duration, resync func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("resync interval must be positive, got %s", interval)
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.log.Debug("Periodic resync")
			resync()
		}),
		gocron.WithName("resync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("cannot create resync job: %w", err)
	}

	s.log.Info("Resync scheduled", slog.Duration("interval", interval))

	return job.ID().String(), nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("cannot stop scheduler: %w", err)
	}

	return nil
}
