// Package backup produces timestamped database snapshots and prunes
// snapshots and dispatch ledger rows that have aged out.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// snapshotPrefix and snapshotSuffix frame the UTC timestamp in
// snapshot names. The 20060102T150405Z layout sorts lexicographically
// by creation time.
const (
	snapshotPrefix = "taskbot-"
	snapshotSuffix = ".db"
	snapshotStamp  = "20060102T150405Z"
)

// Source produces a consistent snapshot of the database at a path.
type Source interface {
	BackupTo(ctx context.Context, path string) error
}

// LedgerPruner deletes dispatch ledger rows older than an instant.
type LedgerPruner interface {
	PruneDispatchRecords(ctx context.Context, olderThan time.Time) (int64, error)
}

// Rotator runs the backup cycle: one snapshot per cycle, then pruning.
type Rotator struct {
	source          Source
	ledger          LedgerPruner
	dir             string
	retention       time.Duration
	ledgerRetention time.Duration
	logger          *slog.Logger
}

// NewRotator creates a Rotator writing snapshots into dir.
func NewRotator(source Source, ledger LedgerPruner, dir string, retention, ledgerRetention time.Duration, logger *slog.Logger) *Rotator {
	return &Rotator{
		source:          source,
		ledger:          ledger,
		dir:             dir,
		retention:       retention,
		ledgerRetention: ledgerRetention,
		logger:          logger.With("component", "backup_rotator"),
	}
}

// SnapshotName renders the snapshot file name for an instant.
func SnapshotName(at time.Time) string {
	return snapshotPrefix + at.UTC().Format(snapshotStamp) + snapshotSuffix
}

// parseSnapshotTime extracts the creation instant from a snapshot file
// name, reporting false for files that are not snapshots.
func parseSnapshotTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	ts, err := time.Parse(snapshotStamp, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// RunCycle produces one snapshot and then prunes. Pruning runs whether
// or not the snapshot succeeded, so a persistent dump failure can never
// starve retention. A failed snapshot's partial file is removed.
func (r *Rotator) RunCycle(ctx context.Context, now time.Time) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", r.dir, err)
	}

	var snapshotErr error
	path := filepath.Join(r.dir, SnapshotName(now))
	if err := r.source.BackupTo(ctx, path); err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			r.logger.WarnContext(ctx, "Failed to remove partial snapshot",
				"path", path, "error", removeErr)
		}
		snapshotErr = fmt.Errorf("snapshot failed: %w", err)
		r.logger.ErrorContext(ctx, "Snapshot failed, partial file discarded",
			"path", path, "error", err)
	} else {
		r.logger.InfoContext(ctx, "Snapshot written", "path", path)
	}

	if err := r.pruneSnapshots(ctx, now); err != nil {
		r.logger.ErrorContext(ctx, "Snapshot pruning failed", "error", err)
	}

	if r.ledger != nil && r.ledgerRetention > 0 {
		if _, err := r.ledger.PruneDispatchRecords(ctx, now.Add(-r.ledgerRetention)); err != nil {
			r.logger.ErrorContext(ctx, "Dispatch ledger pruning failed", "error", err)
		}
	}

	return snapshotErr
}

// pruneSnapshots deletes snapshots whose age meets or exceeds the
// retention window.
func (r *Rotator) pruneSnapshots(ctx context.Context, now time.Time) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory %s: %w", r.dir, err)
	}

	var pruned int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		ts, ok := parseSnapshotTime(entry.Name())
		if !ok {
			continue
		}
		if now.Sub(ts) < r.retention {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			r.logger.WarnContext(ctx, "Failed to delete expired snapshot",
				"path", path, "error", err)
			continue
		}
		pruned++
	}

	if pruned > 0 {
		r.logger.InfoContext(ctx, "Pruned expired snapshots", "count", pruned)
	}
	return nil
}
