package tasks

import (
	"context"
	"time"
)

// ScheduledTaskFunc is the signature for all scheduled task bodies.
// The context provided by the scheduler must be respected for
// cancellation; a returned error is logged, never fatal.
type ScheduledTaskFunc func(ctx context.Context) error

// ScheduledTask pairs a task body with its run interval.
type ScheduledTask struct {
	Interval time.Duration
	Run      ScheduledTaskFunc
}

// RegisterAllTasks initializes and returns all scheduled tasks keyed
// by name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTask {
	tasks := map[string]ScheduledTask{
		"dispatch": {
			Interval: deps.Config.Scheduler.TickInterval,
			Run:      newDispatchTask(deps),
		},
		"backup": {
			Interval: deps.Config.Backup.Interval,
			Run:      newBackupTask(deps),
		},
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
