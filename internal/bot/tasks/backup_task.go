package tasks

import (
	"context"
	"time"
)

// newBackupTask returns the backup cycle body: one snapshot plus
// retention pruning per run.
func newBackupTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		return deps.Rotator.RunCycle(ctx, time.Now().UTC())
	}
}
