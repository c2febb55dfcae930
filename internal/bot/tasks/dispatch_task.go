package tasks

import (
	"context"
	"time"
)

// newDispatchTask returns the scheduler tick body: evaluate the due
// set as of now and dispatch it. Each tick snapshots its own now; the
// scheduler guarantees ticks never overlap.
func newDispatchTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		return deps.Worker.Tick(ctx, time.Now().UTC())
	}
}
