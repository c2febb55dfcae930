package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// defaultColumns are created for every new board. The last one is the
// terminal "done" column.
var defaultColumns = []struct {
	Name   string
	IsDone bool
}{
	{"Inbox", false},
	{"Todo", false},
	{"Doing", false},
	{"Done", true},
}

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// BootstrapUser fetches or creates the user, their board, and the
	// default columns in one call. Used by /start and the auth middleware.
	BootstrapUser(ctx context.Context, telegramID int64, defaultTZ, defaultDigestTime string) (*User, *Board, []Column, error)

	// ListDigestUsers returns users with the daily digest enabled.
	ListDigestUsers(ctx context.Context) ([]User, error)

	// UpdateUserTimezone sets a user's IANA zone name. The caller must
	// have validated the zone; this method only persists it.
	UpdateUserTimezone(ctx context.Context, userID int64, timezone string) error

	// UpdateUserDigest sets digest delivery settings. digestTime must be
	// a validated HH:MM value.
	UpdateUserDigest(ctx context.Context, userID int64, enabled bool, digestTime string) error

	// GetBoardByOwner returns the user's board.
	GetBoardByOwner(ctx context.Context, userID int64) (*Board, error)

	// ListColumns returns the board's columns ordered by position.
	ListColumns(ctx context.Context, boardID int64) ([]Column, error)

	// GetDoneColumn returns the terminal column of the board.
	GetDoneColumn(ctx context.Context, boardID int64) (*Column, error)

	// CreateColumn appends a new column at the end of the board.
	CreateColumn(ctx context.Context, boardID int64, name string) (*Column, error)

	// RenameColumn renames a column on the given board.
	RenameColumn(ctx context.Context, boardID, columnID int64, name string) error

	// DeleteColumn removes a column, re-homing its tasks to the first
	// remaining column. The last column cannot be deleted.
	DeleteColumn(ctx context.Context, boardID, columnID int64) error

	// CreateTask inserts a task and attaches tags, creating tags as needed.
	CreateTask(ctx context.Context, task *Task, tags []string) error

	// GetTask returns a task with its tags.
	GetTask(ctx context.Context, boardID, taskID int64) (*Task, error)

	// ListBoardTasks returns board tasks ordered by priority, due date,
	// then recency, with tags attached.
	ListBoardTasks(ctx context.Context, boardID int64, includeDone bool) ([]Task, error)

	// ListTasksDueBetween returns open tasks with due_at in [start, end).
	ListTasksDueBetween(ctx context.Context, boardID int64, start, end time.Time) ([]Task, error)

	// ListTasksDueBefore returns open tasks with due_at before the instant.
	ListTasksDueBefore(ctx context.Context, boardID int64, before time.Time) ([]Task, error)

	// MoveTask moves a task into a column, updating status and
	// completed_at according to the column's is_done flag.
	MoveTask(ctx context.Context, boardID, taskID, columnID int64) (*Task, error)

	// CompleteTask moves a task into the board's done column.
	CompleteTask(ctx context.Context, boardID, taskID int64) (*Task, error)

	// PostponeTask shifts due_at forward by the given duration (from
	// now if the task has no deadline) and re-derives reminder_at.
	PostponeTask(ctx context.Context, boardID, taskID int64, by time.Duration, now time.Time) (*Task, error)

	// UpdateTaskTitle renames a task.
	UpdateTaskTitle(ctx context.Context, boardID, taskID int64, title string) error

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, boardID, taskID int64) error

	// SetTaskTags replaces a task's tag set.
	SetTaskTags(ctx context.Context, boardID, taskID int64, tags []string) error

	// SearchTasks matches title or description, most recently updated first.
	SearchTasks(ctx context.Context, boardID int64, query string) ([]Task, error)

	// ListTagStats returns tag usage counts, most used first.
	ListTagStats(ctx context.Context, boardID int64) ([]TagStat, error)

	// ListReminderDue returns open tasks whose reminder instant falls in
	// (from, to], joined with their owners, ordered by user then due
	// date. This is the scheduler's reminder candidate query.
	ListReminderDue(ctx context.Context, from, to time.Time) ([]ReminderItem, error)

	// HasDispatched reports whether the ledger holds a record for the key.
	HasDispatched(ctx context.Context, kind DispatchKind, subjectID string, userID int64) (bool, error)

	// RecordDispatch writes a ledger row. Inserting an existing key is a
	// no-op, so replaying a send after a crash never fails here.
	RecordDispatch(ctx context.Context, kind DispatchKind, subjectID string, userID int64, at time.Time) error

	// PruneDispatchRecords deletes ledger rows older than the instant.
	// Retention pruning only bounds storage growth; correctness never
	// depends on it.
	PruneDispatchRecords(ctx context.Context, olderThan time.Time) (int64, error)

	// RecordExport logs a produced export file.
	RecordExport(ctx context.Context, userID int64, format, fileName string) error

	// BackupTo writes a consistent snapshot of the database to path
	// using SQLite's VACUUM INTO.
	BackupTo(ctx context.Context, path string) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BootstrapUser fetches or creates the user, their board, and default columns.
func (s *sqlxStore) BootstrapUser(ctx context.Context, telegramID int64, defaultTZ, defaultDigestTime string) (*User, *Board, []Column, error) {
	if telegramID == 0 {
		return nil, nil, nil, fmt.Errorf("telegram_id cannot be zero")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var user User
	err = tx.GetContext(ctx, &user, `SELECT * FROM users WHERE telegram_id = ?`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now().UTC()
		res, insErr := tx.ExecContext(ctx,
			`INSERT INTO users (telegram_id, timezone, digest_enabled, digest_time, created_at) VALUES (?, ?, 1, ?, ?)`,
			telegramID, defaultTZ, defaultDigestTime, now)
		if insErr != nil {
			return nil, nil, nil, fmt.Errorf("failed to create user for telegram id %d: %w", telegramID, insErr)
		}
		id, _ := res.LastInsertId()
		user = User{ID: id, TelegramID: telegramID, Timezone: defaultTZ, DigestEnabled: true, DigestTime: defaultDigestTime, CreatedAt: now}
		s.logger.InfoContext(ctx, "Created user", "user_id", id, "telegram_id", telegramID)
	} else if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query user: %w", err)
	}

	var board Board
	err = tx.GetContext(ctx, &board, `SELECT * FROM boards WHERE owner_id = ?`, user.ID)
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now().UTC()
		res, insErr := tx.ExecContext(ctx,
			`INSERT INTO boards (owner_id, name, created_at) VALUES (?, 'My board', ?)`, user.ID, now)
		if insErr != nil {
			return nil, nil, nil, fmt.Errorf("failed to create board for user %d: %w", user.ID, insErr)
		}
		id, _ := res.LastInsertId()
		board = Board{ID: id, OwnerID: user.ID, Name: "My board", CreatedAt: now}
	} else if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query board: %w", err)
	}

	var columns []Column
	if err := tx.SelectContext(ctx, &columns,
		`SELECT * FROM columns WHERE board_id = ? ORDER BY position`, board.ID); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query columns: %w", err)
	}
	if len(columns) == 0 {
		for idx, def := range defaultColumns {
			res, insErr := tx.ExecContext(ctx,
				`INSERT INTO columns (board_id, name, position, is_done) VALUES (?, ?, ?, ?)`,
				board.ID, def.Name, idx, def.IsDone)
			if insErr != nil {
				return nil, nil, nil, fmt.Errorf("failed to create column %q: %w", def.Name, insErr)
			}
			id, _ := res.LastInsertId()
			columns = append(columns, Column{ID: id, BoardID: board.ID, Name: def.Name, Position: idx, IsDone: def.IsDone})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	return &user, &board, columns, nil
}

// ListDigestUsers returns users with the daily digest enabled.
func (s *sqlxStore) ListDigestUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.SelectContext(ctx, &users,
		`SELECT * FROM users WHERE digest_enabled = 1 ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list digest users: %w", err)
	}
	return users, nil
}

// UpdateUserTimezone sets a user's IANA zone name.
func (s *sqlxStore) UpdateUserTimezone(ctx context.Context, userID int64, timezone string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET timezone = ? WHERE id = ?`, timezone, userID)
	if err != nil {
		return fmt.Errorf("failed to update timezone for user %d: %w", userID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	s.logger.InfoContext(ctx, "Updated user timezone", "user_id", userID, "timezone", timezone)
	return nil
}

// UpdateUserDigest sets digest delivery settings.
func (s *sqlxStore) UpdateUserDigest(ctx context.Context, userID int64, enabled bool, digestTime string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET digest_enabled = ?, digest_time = ? WHERE id = ?`, enabled, digestTime, userID)
	if err != nil {
		return fmt.Errorf("failed to update digest settings for user %d: %w", userID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	s.logger.InfoContext(ctx, "Updated digest settings",
		"user_id", userID, "enabled", enabled, "digest_time", digestTime)
	return nil
}

// GetBoardByOwner returns the user's board.
func (s *sqlxStore) GetBoardByOwner(ctx context.Context, userID int64) (*Board, error) {
	var board Board
	err := s.db.GetContext(ctx, &board, `SELECT * FROM boards WHERE owner_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board for user %d: %w", userID, err)
	}
	return &board, nil
}

// ListColumns returns the board's columns ordered by position.
func (s *sqlxStore) ListColumns(ctx context.Context, boardID int64) ([]Column, error) {
	var columns []Column
	if err := s.db.SelectContext(ctx, &columns,
		`SELECT * FROM columns WHERE board_id = ? ORDER BY position`, boardID); err != nil {
		return nil, fmt.Errorf("failed to list columns for board %d: %w", boardID, err)
	}
	return columns, nil
}

// GetDoneColumn returns the terminal column of the board.
func (s *sqlxStore) GetDoneColumn(ctx context.Context, boardID int64) (*Column, error) {
	var column Column
	err := s.db.GetContext(ctx, &column,
		`SELECT * FROM columns WHERE board_id = ? AND is_done = 1 ORDER BY position LIMIT 1`, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get done column for board %d: %w", boardID, err)
	}
	return &column, nil
}

// CreateColumn appends a new column at the end of the board.
func (s *sqlxStore) CreateColumn(ctx context.Context, boardID int64, name string) (*Column, error) {
	var maxPos sql.NullInt64
	if err := s.db.GetContext(ctx, &maxPos,
		`SELECT MAX(position) FROM columns WHERE board_id = ?`, boardID); err != nil {
		return nil, fmt.Errorf("failed to query column positions: %w", err)
	}
	pos := int(maxPos.Int64) + 1

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO columns (board_id, name, position, is_done) VALUES (?, ?, ?, 0)`, boardID, name, pos)
	if err != nil {
		return nil, fmt.Errorf("failed to create column %q: %w", name, err)
	}
	id, _ := res.LastInsertId()
	s.logger.InfoContext(ctx, "Created column", "board_id", boardID, "column_id", id, "name", name)
	return &Column{ID: id, BoardID: boardID, Name: name, Position: pos}, nil
}

// RenameColumn renames a column on the given board.
func (s *sqlxStore) RenameColumn(ctx context.Context, boardID, columnID int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE columns SET name = ? WHERE id = ? AND board_id = ?`, name, columnID, boardID)
	if err != nil {
		return fmt.Errorf("failed to rename column %d: %w", columnID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteColumn removes a column, re-homing its tasks to the first remaining one.
func (s *sqlxStore) DeleteColumn(ctx context.Context, boardID, columnID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var columns []Column
	if err := tx.SelectContext(ctx, &columns,
		`SELECT * FROM columns WHERE board_id = ? ORDER BY position`, boardID); err != nil {
		return fmt.Errorf("failed to list columns: %w", err)
	}
	if len(columns) <= 1 {
		return fmt.Errorf("cannot delete the last column of board %d", boardID)
	}

	var target *Column
	var fallback *Column
	for i := range columns {
		if columns[i].ID == columnID {
			target = &columns[i]
		} else if fallback == nil {
			fallback = &columns[i]
		}
	}
	if target == nil {
		return ErrNotFound
	}

	// Re-home tasks; their done state follows the fallback column.
	status, completed := StatusActive, sql.NullTime{}
	if fallback.IsDone {
		status = StatusDone
		completed = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET column_id = ?, status = ?, completed_at = ? WHERE column_id = ?`,
		fallback.ID, status, completed, columnID); err != nil {
		return fmt.Errorf("failed to re-home tasks from column %d: %w", columnID, err)
	}

	if target.IsDone && !fallback.IsDone {
		if _, err := tx.ExecContext(ctx,
			`UPDATE columns SET is_done = 1 WHERE id = ?`, fallback.ID); err != nil {
			return fmt.Errorf("failed to promote fallback done column: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, columnID); err != nil {
		return fmt.Errorf("failed to delete column %d: %w", columnID, err)
	}

	// Compact positions. Two passes avoid the unique (board_id, position)
	// constraint colliding mid-update.
	var remaining []Column
	if err := tx.SelectContext(ctx, &remaining,
		`SELECT * FROM columns WHERE board_id = ? ORDER BY position`, boardID); err != nil {
		return fmt.Errorf("failed to list remaining columns: %w", err)
	}
	for i, col := range remaining {
		if _, err := tx.ExecContext(ctx, `UPDATE columns SET position = ? WHERE id = ?`, 1000+i, col.ID); err != nil {
			return fmt.Errorf("failed to reorder columns: %w", err)
		}
	}
	for i, col := range remaining {
		if _, err := tx.ExecContext(ctx, `UPDATE columns SET position = ? WHERE id = ?`, i, col.ID); err != nil {
			return fmt.Errorf("failed to reorder columns: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Deleted column", "board_id", boardID, "column_id", columnID)
	return nil
}

// ListReminderDue returns open tasks whose reminder instant falls in (from, to].
func (s *sqlxStore) ListReminderDue(ctx context.Context, from, to time.Time) ([]ReminderItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	rows, err := s.db.QueryxContext(ctx, `
        SELECT t.id, t.board_id, t.column_id, t.title, t.description, t.priority, t.status,
               t.due_at, t.reminder_at, t.completed_at, t.created_at, t.updated_at,
               u.id AS user_id, u.telegram_id, u.timezone
        FROM tasks t
        JOIN boards b ON b.id = t.board_id
        JOIN users u ON u.id = b.owner_id
        WHERE t.completed_at IS NULL
          AND t.reminder_at IS NOT NULL
          AND t.reminder_at > ?
          AND t.reminder_at <= ?
        ORDER BY u.id, t.due_at, t.id;`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder candidates: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var items []ReminderItem
	for rows.Next() {
		var row struct {
			Task
			UserID     int64  `db:"user_id"`
			TelegramID int64  `db:"telegram_id"`
			Timezone   string `db:"timezone"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan reminder candidate: %w", err)
		}
		items = append(items, ReminderItem{
			Task:       row.Task,
			UserID:     row.UserID,
			TelegramID: row.TelegramID,
			Timezone:   row.Timezone,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder candidates: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched reminder candidates",
		"count", len(items), "from", from, "to", to)
	return items, nil
}

// HasDispatched reports whether the ledger holds a record for the key.
func (s *sqlxStore) HasDispatched(ctx context.Context, kind DispatchKind, subjectID string, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM dispatch_records WHERE kind = ? AND subject_id = ? AND user_id = ?)`,
		kind, subjectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to query dispatch ledger (%s, %s, %d): %w", kind, subjectID, userID, err)
	}
	return exists, nil
}

// RecordDispatch writes a ledger row. INSERT OR IGNORE keeps crash
// replays (send succeeded, record lost, send repeated) from failing here.
func (s *sqlxStore) RecordDispatch(ctx context.Context, kind DispatchKind, subjectID string, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dispatch_records (kind, subject_id, user_id, sent_at) VALUES (?, ?, ?, ?)`,
		kind, subjectID, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record dispatch (%s, %s, %d): %w", kind, subjectID, userID, err)
	}
	s.logger.DebugContext(ctx, "Recorded dispatch",
		"kind", kind, "subject_id", subjectID, "user_id", userID)
	return nil
}

// PruneDispatchRecords deletes ledger rows older than the instant.
func (s *sqlxStore) PruneDispatchRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dispatch_records WHERE sent_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune dispatch records: %w", err)
	}
	count, _ := res.RowsAffected()
	if count > 0 {
		s.logger.InfoContext(ctx, "Pruned dispatch records", "count", count, "older_than", olderThan)
	}
	return count, nil
}

// RecordExport logs a produced export file.
func (s *sqlxStore) RecordExport(ctx context.Context, userID int64, format, fileName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_logs (user_id, format, file_name, created_at) VALUES (?, ?, ?, ?)`,
		userID, format, fileName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record export for user %d: %w", userID, err)
	}
	return nil
}

// BackupTo writes a consistent snapshot of the database to path.
// VACUUM INTO produces a compacted copy without blocking readers.
func (s *sqlxStore) BackupTo(ctx context.Context, path string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database snapshot", "path", path)
	start := time.Now()

	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Database snapshot timed out or was cancelled", "path", path, "error", err)
		return fmt.Errorf("database snapshot timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database snapshot failed", "path", path, "error", err)
		return fmt.Errorf("failed to snapshot database to %s: %w", path, err)
	}

	s.logger.InfoContext(ctx, "Database snapshot completed",
		"path", path, "duration", time.Since(start))
	return nil
}
