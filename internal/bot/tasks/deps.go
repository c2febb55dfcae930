// Package tasks defines the background jobs the scheduler runs: the
// dispatch tick and the backup cycle.
package tasks

import (
	"log/slog"

	"github.com/eskovalev/taskbot/internal/backup"
	"github.com/eskovalev/taskbot/internal/config"
	"github.com/eskovalev/taskbot/internal/dispatch"
)

// TaskDeps provides dependencies for scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Worker  *dispatch.Worker
	Rotator *backup.Rotator
}
