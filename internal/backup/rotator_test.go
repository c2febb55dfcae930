// Package backup_test tests snapshot rotation and retention pruning.
package backup_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/eskovalev/taskbot/internal/backup"
)

// fileSource writes a fixed payload, or fails.
type fileSource struct {
	payload []byte
	err     error
}

func (s *fileSource) BackupTo(_ context.Context, path string) error {
	if s.err != nil {
		// Leave a partial file behind, like an interrupted dump would.
		_ = os.WriteFile(path, []byte("partial"), 0o600)
		return s.err
	}
	return os.WriteFile(path, s.payload, 0o600)
}

type countingPruner struct {
	calls     int
	olderThan time.Time
}

func (p *countingPruner) PruneDispatchRecords(_ context.Context, olderThan time.Time) (int64, error) {
	p.calls++
	p.olderThan = olderThan
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listSnapshots(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read backup dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestSnapshotNameSortsChronologically(t *testing.T) {
	t.Parallel()

	earlier := backup.SnapshotName(time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))
	later := backup.SnapshotName(time.Date(2026, 3, 10, 9, 30, 1, 0, time.UTC))
	nextYear := backup.SnapshotName(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))

	if !(earlier < later && later < nextYear) {
		t.Errorf("snapshot names do not sort chronologically: %q %q %q", earlier, later, nextYear)
	}
}

func TestRunCycleWritesSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rotator := backup.NewRotator(&fileSource{payload: []byte("data")}, nil, dir, 14*24*time.Hour, 0, discardLogger())

	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	if err := rotator.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	names := listSnapshots(t, dir)
	if len(names) != 1 {
		t.Fatalf("got %d files, want 1: %v", len(names), names)
	}
	if names[0] != "taskbot-20260310T030000Z.db" {
		t.Errorf("snapshot name = %q", names[0])
	}
}

func TestRetentionPruning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rotator := backup.NewRotator(&fileSource{payload: []byte("data")}, nil, dir, 14*24*time.Hour, 0, discardLogger())
	ctx := context.Background()

	// Daily cycles on days 1..20, then one on day 21. With 14 days of
	// retention the day-21 pruning keeps exactly days 8..21.
	start := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	for day := 0; day < 20; day++ {
		if err := rotator.RunCycle(ctx, start.AddDate(0, 0, day)); err != nil {
			t.Fatalf("cycle on day %d failed: %v", day+1, err)
		}
	}
	if err := rotator.RunCycle(ctx, start.AddDate(0, 0, 20)); err != nil {
		t.Fatalf("cycle on day 21 failed: %v", err)
	}

	names := listSnapshots(t, dir)
	if len(names) != 14 {
		t.Fatalf("got %d snapshots, want 14: %v", len(names), names)
	}
	if names[0] != backup.SnapshotName(start.AddDate(0, 0, 7)) {
		t.Errorf("oldest survivor = %q, want the day 8 snapshot", names[0])
	}
	if names[len(names)-1] != backup.SnapshotName(start.AddDate(0, 0, 20)) {
		t.Errorf("newest survivor = %q, want the day 21 snapshot", names[len(names)-1])
	}
}

func TestFailedSnapshotStillPrunes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := discardLogger()
	ctx := context.Background()

	good := backup.NewRotator(&fileSource{payload: []byte("data")}, nil, dir, 48*time.Hour, 0, logger)
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	if err := good.RunCycle(ctx, now.Add(-72*time.Hour)); err != nil {
		t.Fatalf("seed cycle failed: %v", err)
	}

	bad := backup.NewRotator(&fileSource{err: errors.New("disk full")}, nil, dir, 48*time.Hour, 0, logger)
	if err := bad.RunCycle(ctx, now); err == nil {
		t.Fatal("RunCycle with a failing source should return the snapshot error")
	}

	// The partial file is discarded and the expired snapshot is gone
	// even though this cycle's dump failed.
	if names := listSnapshots(t, dir); len(names) != 0 {
		t.Errorf("directory not empty after failed cycle: %v", names)
	}
}

func TestPruningIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keep := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(keep, []byte("keep me"), 0o600); err != nil {
		t.Fatalf("failed to write foreign file: %v", err)
	}

	rotator := backup.NewRotator(&fileSource{payload: []byte("data")}, nil, dir, time.Hour, 0, discardLogger())
	if err := rotator.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if _, err := os.Stat(keep); err != nil {
		t.Errorf("foreign file was touched by pruning: %v", err)
	}
}

func TestLedgerPruningRunsEachCycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pruner := &countingPruner{}
	rotator := backup.NewRotator(&fileSource{payload: []byte("data")}, pruner, dir, 14*24*time.Hour, 90*24*time.Hour, discardLogger())

	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	if err := rotator.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if pruner.calls != 1 {
		t.Fatalf("ledger pruner called %d times, want 1", pruner.calls)
	}
	want := now.Add(-90 * 24 * time.Hour)
	if !pruner.olderThan.Equal(want) {
		t.Errorf("ledger pruned olderThan %v, want %v", pruner.olderThan, want)
	}
}
