package database

import (
	"database/sql"
	"time"
)

// DispatchKind distinguishes ledger entries for the two notification types.
type DispatchKind string

const (
	DispatchReminder DispatchKind = "reminder"
	DispatchDigest   DispatchKind = "digest"
)

// Task statuses. A task is "done" exactly when completed_at is set.
const (
	StatusActive = "active"
	StatusDone   = "done"
)

// User represents the bot user and their notification settings.
// Timezone and digest_time are validated before they are written;
// the scheduler trusts them at dispatch time.
type User struct {
	ID            int64     `db:"id"`
	TelegramID    int64     `db:"telegram_id"`
	Timezone      string    `db:"timezone"`
	DigestEnabled bool      `db:"digest_enabled"`
	DigestTime    string    `db:"digest_time"`
	CreatedAt     time.Time `db:"created_at"`
}

// Board is the single kanban board owned by a user.
type Board struct {
	ID        int64     `db:"id"`
	OwnerID   int64     `db:"owner_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Column is an ordered board column. Moving a task into a column with
// IsDone set marks the task completed.
type Column struct {
	ID       int64  `db:"id"`
	BoardID  int64  `db:"board_id"`
	Name     string `db:"name"`
	Position int    `db:"position"`
	IsDone   bool   `db:"is_done"`
}

// Task is a board task. DueAt and ReminderAt are stored as UTC instants;
// all local-calendar interpretation happens in the timezone package.
type Task struct {
	ID          int64         `db:"id"`
	BoardID     int64         `db:"board_id"`
	ColumnID    sql.NullInt64 `db:"column_id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	Priority    int           `db:"priority"`
	Status      string        `db:"status"`
	DueAt       sql.NullTime  `db:"due_at"`
	ReminderAt  sql.NullTime  `db:"reminder_at"`
	CompletedAt sql.NullTime  `db:"completed_at"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`

	// Tags is populated by queries that join task_tags; not a column.
	Tags []string `db:"-"`
}

// Done reports whether the task has been completed.
func (t *Task) Done() bool { return t.CompletedAt.Valid }

// Tag is a per-board label attached to tasks.
type Tag struct {
	ID      int64  `db:"id"`
	BoardID int64  `db:"board_id"`
	Name    string `db:"name"`
}

// TagStat is the usage count of one tag on a board.
type TagStat struct {
	Name  string `db:"name"`
	Count int    `db:"count"`
}

// DispatchRecord is one row of the dispatch ledger: proof that a
// reminder or digest was handed to the notifier. Rows are never
// updated; the unique (kind, subject_id, user_id) key is what makes
// repeated sends impossible across restarts.
type DispatchRecord struct {
	ID        int64        `db:"id"`
	Kind      DispatchKind `db:"kind"`
	SubjectID string       `db:"subject_id"`
	UserID    int64        `db:"user_id"`
	SentAt    time.Time    `db:"sent_at"`
}

// ReminderItem is a reminder candidate joined with its owner,
// as returned by ListReminderDue.
type ReminderItem struct {
	Task       Task
	UserID     int64
	TelegramID int64
	Timezone   string
}

// ExportLog records one produced export file.
type ExportLog struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Format    string    `db:"format"`
	FileName  string    `db:"file_name"`
	CreatedAt time.Time `db:"created_at"`
}
