package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// reminderLead is how far ahead of a deadline the reminder fires. A
// deadline closer than the lead gets the deadline itself as reminder.
const reminderLead = time.Hour

// NextReminderAt derives the reminder instant for a deadline.
func NextReminderAt(dueAt, now time.Time) time.Time {
	preferred := dueAt.Add(-reminderLead)
	if preferred.After(now) {
		return preferred
	}
	return dueAt
}

const taskColumns = `id, board_id, column_id, title, description, priority, status,
       due_at, reminder_at, completed_at, created_at, updated_at`

// CreateTask inserts a task and attaches tags, creating tags as needed.
func (s *sqlxStore) CreateTask(ctx context.Context, task *Task, tags []string) error {
	if task == nil {
		return fmt.Errorf("cannot save nil task")
	}
	if task.BoardID == 0 {
		return fmt.Errorf("task must have a non-zero board_id")
	}
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task must have a non-empty title")
	}

	task.Title = strings.TrimSpace(task.Title)
	task.Description = strings.TrimSpace(task.Description)
	if task.Priority < 1 {
		task.Priority = 1
	} else if task.Priority > 3 {
		task.Priority = 3
	}
	if task.Status == "" {
		task.Status = StatusActive
	}

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

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

	res, err := tx.NamedExecContext(ctx, `
        INSERT INTO tasks (board_id, column_id, title, description, priority, status,
                           due_at, reminder_at, completed_at, created_at, updated_at)
        VALUES (:board_id, :column_id, :title, :description, :priority, :status,
                :due_at, :reminder_at, :completed_at, :created_at, :updated_at);`, task)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving task", "board_id", task.BoardID, "error", err)
		return fmt.Errorf("failed to save task on board %d: %w", task.BoardID, err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		task.ID = id
	}

	if err := s.setTagsTx(ctx, tx, task, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Task saved successfully",
		"board_id", task.BoardID, "task_id", task.ID)
	return nil
}

// setTagsTx replaces the task's tag links inside an open transaction,
// creating missing tags on the board.
func (s *sqlxStore) setTagsTx(ctx context.Context, tx *sqlx.Tx, task *Task, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, task.ID); err != nil {
		return fmt.Errorf("failed to clear tags for task %d: %w", task.ID, err)
	}

	seen := make(map[string]bool, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cleaned = append(cleaned, name)
	}

	for _, name := range cleaned {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (board_id, name) VALUES (?, ?)`, task.BoardID, name); err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		var tagID int64
		if err := tx.GetContext(ctx, &tagID,
			`SELECT id FROM tags WHERE board_id = ? AND name = ?`, task.BoardID, name); err != nil {
			return fmt.Errorf("failed to look up tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?, ?)`, task.ID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}

	sort.Strings(cleaned)
	task.Tags = cleaned
	return nil
}

// GetTask returns a task with its tags.
func (s *sqlxStore) GetTask(ctx context.Context, boardID, taskID int64) (*Task, error) {
	var task Task
	err := s.db.GetContext(ctx, &task,
		`SELECT `+taskColumns+` FROM tasks WHERE board_id = ? AND id = ?`, boardID, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}

	tasks := []Task{task}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// ListBoardTasks returns board tasks ordered by priority, due date, then recency.
func (s *sqlxStore) ListBoardTasks(ctx context.Context, boardID int64, includeDone bool) ([]Task, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE board_id = ?`
	if !includeDone {
		query += ` AND completed_at IS NULL`
	}
	query += ` ORDER BY priority ASC, due_at IS NULL, due_at ASC, created_at DESC`

	var tasks []Task
	if err := s.db.SelectContext(ctx, &tasks, query, boardID); err != nil {
		return nil, fmt.Errorf("failed to list tasks for board %d: %w", boardID, err)
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTasksDueBetween returns open tasks with due_at in [start, end).
func (s *sqlxStore) ListTasksDueBetween(ctx context.Context, boardID int64, start, end time.Time) ([]Task, error) {
	var tasks []Task
	err := s.db.SelectContext(ctx, &tasks, `
        SELECT `+taskColumns+` FROM tasks
        WHERE board_id = ? AND completed_at IS NULL
          AND due_at IS NOT NULL AND due_at >= ? AND due_at < ?
        ORDER BY due_at ASC`, boardID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks for board %d: %w", boardID, err)
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTasksDueBefore returns open tasks with due_at before the instant.
func (s *sqlxStore) ListTasksDueBefore(ctx context.Context, boardID int64, before time.Time) ([]Task, error) {
	var tasks []Task
	err := s.db.SelectContext(ctx, &tasks, `
        SELECT `+taskColumns+` FROM tasks
        WHERE board_id = ? AND completed_at IS NULL
          AND due_at IS NOT NULL AND due_at < ?
        ORDER BY due_at ASC`, boardID, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks for board %d: %w", boardID, err)
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MoveTask moves a task into a column, updating its done state.
func (s *sqlxStore) MoveTask(ctx context.Context, boardID, taskID, columnID int64) (*Task, error) {
	var column Column
	err := s.db.GetContext(ctx, &column,
		`SELECT * FROM columns WHERE id = ? AND board_id = ?`, columnID, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get column %d: %w", columnID, err)
	}

	status, completed := StatusActive, sql.NullTime{}
	if column.IsDone {
		status = StatusDone
		completed = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE tasks SET column_id = ?, status = ?, completed_at = ?, updated_at = ?
        WHERE id = ? AND board_id = ?`,
		columnID, status, completed, time.Now().UTC(), taskID, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to move task %d: %w", taskID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}

	s.logger.DebugContext(ctx, "Moved task",
		"task_id", taskID, "column_id", columnID, "status", status)
	return s.GetTask(ctx, boardID, taskID)
}

// CompleteTask moves a task into the board's done column.
func (s *sqlxStore) CompleteTask(ctx context.Context, boardID, taskID int64) (*Task, error) {
	done, err := s.GetDoneColumn(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return s.MoveTask(ctx, boardID, taskID, done.ID)
}

// PostponeTask shifts due_at forward and re-derives reminder_at.
func (s *sqlxStore) PostponeTask(ctx context.Context, boardID, taskID int64, by time.Duration, now time.Time) (*Task, error) {
	task, err := s.GetTask(ctx, boardID, taskID)
	if err != nil {
		return nil, err
	}

	base := now
	if task.DueAt.Valid {
		base = task.DueAt.Time
	}
	due := base.Add(by)
	reminder := NextReminderAt(due, now)

	if _, err := s.db.ExecContext(ctx, `
        UPDATE tasks SET due_at = ?, reminder_at = ?, updated_at = ?
        WHERE id = ? AND board_id = ?`,
		due, reminder, now.UTC(), taskID, boardID); err != nil {
		return nil, fmt.Errorf("failed to postpone task %d: %w", taskID, err)
	}

	s.logger.DebugContext(ctx, "Postponed task", "task_id", taskID, "due_at", due)
	return s.GetTask(ctx, boardID, taskID)
}

// UpdateTaskTitle renames a task.
func (s *sqlxStore) UpdateTaskTitle(ctx context.Context, boardID, taskID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("task title cannot be empty")
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE tasks SET title = ?, updated_at = ? WHERE id = ? AND board_id = ?`,
		title, time.Now().UTC(), taskID, boardID)
	if err != nil {
		return fmt.Errorf("failed to rename task %d: %w", taskID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (s *sqlxStore) DeleteTask(ctx context.Context, boardID, taskID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND board_id = ?`, taskID, boardID)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", taskID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	s.logger.InfoContext(ctx, "Deleted task", "board_id", boardID, "task_id", taskID)
	return nil
}

// SetTaskTags replaces a task's tag set.
func (s *sqlxStore) SetTaskTags(ctx context.Context, boardID, taskID int64, tags []string) error {
	task, err := s.GetTask(ctx, boardID, taskID)
	if err != nil {
		return err
	}

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

	if err := s.setTagsTx(ctx, tx, task, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// SearchTasks matches title or description, most recently updated first.
func (s *sqlxStore) SearchTasks(ctx context.Context, boardID int64, query string) ([]Task, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	var tasks []Task
	err := s.db.SelectContext(ctx, &tasks, `
        SELECT `+taskColumns+` FROM tasks
        WHERE board_id = ? AND (title LIKE ? OR description LIKE ?)
        ORDER BY updated_at DESC
        LIMIT 30`, boardID, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks on board %d: %w", boardID, err)
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTagStats returns tag usage counts, most used first.
func (s *sqlxStore) ListTagStats(ctx context.Context, boardID int64) ([]TagStat, error) {
	var stats []TagStat
	err := s.db.SelectContext(ctx, &stats, `
        SELECT tg.name AS name, COUNT(tt.task_id) AS count
        FROM tags tg
        JOIN task_tags tt ON tt.tag_id = tg.id
        WHERE tg.board_id = ?
        GROUP BY tg.name
        ORDER BY count DESC, tg.name ASC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag stats for board %d: %w", boardID, err)
	}
	return stats, nil
}

// attachTags fills the Tags field of every task in one query.
func (s *sqlxStore) attachTags(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]int64, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}

	query, args, err := sqlx.In(`
        SELECT tt.task_id AS task_id, tg.name AS name
        FROM task_tags tt
        JOIN tags tg ON tg.id = tt.tag_id
        WHERE tt.task_id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build tag query: %w", err)
	}
	query = s.db.Rebind(query)

	var rows []struct {
		TaskID int64  `db:"task_id"`
		Name   string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}

	byTask := make(map[int64][]string, len(tasks))
	for _, row := range rows {
		byTask[row.TaskID] = append(byTask[row.TaskID], row.Name)
	}
	for i := range tasks {
		names := byTask[tasks[i].ID]
		sort.Strings(names)
		tasks[i].Tags = names
	}
	return nil
}
