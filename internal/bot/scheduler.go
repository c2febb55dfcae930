package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/eskovalev/taskbot/internal/bot/tasks"
)

// Scheduler runs the background jobs using gocron. Every job is
// registered in singleton mode, so a slow run can never overlap the
// next one; the dispatch loop depends on ticks being strictly
// sequential.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	taskMap   map[string]tasks.ScheduledTask
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for the given task map.
func NewScheduler(logger *slog.Logger, taskMap map[string]tasks.ScheduledTask) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		taskMap:   taskMap,
	}, nil
}

// Start schedules all tasks and starts the scheduler's internal ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	for taskName, task := range s.taskMap {
		if task.Interval <= 0 {
			s.logger.Warn("Skipping task with no interval", "task_name", taskName)
			continue
		}

		taskFunc := task.Run
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(task.Interval),
			gocron.NewTask(func(ctx context.Context, name string) {
				start := time.Now()
				s.logger.Debug("Running scheduled task", "task_name", name)
				if taskErr := taskFunc(ctx); taskErr != nil {
					s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
				}
				s.logger.Debug("Finished scheduled task",
					"task_name", name, "duration", time.Since(start))
			}, context.Background(), taskName),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", taskName, err)
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "interval", task.Interval)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks", len(s.taskMap))
	return nil
}

// Stop gracefully stops the scheduler. gocron's Shutdown waits for
// running jobs, so an in-flight tick or backup cycle finishes first.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
		s.running = false
		return err
	}

	s.running = false
	s.logger.Info("Scheduler stopped gracefully")
	return nil
}
