// Package dispatch implements the time-driven core: evaluating which
// reminders and daily digests are due, sending them, and recording
// every send in the dispatch ledger so nothing fires twice.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/eskovalev/taskbot/internal/database"
)

// Store is the slice of the database layer the dispatcher needs.
// *database.Store satisfies it.
type Store interface {
	ListDigestUsers(ctx context.Context) ([]database.User, error)
	ListReminderDue(ctx context.Context, from, to time.Time) ([]database.ReminderItem, error)
	GetBoardByOwner(ctx context.Context, userID int64) (*database.Board, error)
	ListColumns(ctx context.Context, boardID int64) ([]database.Column, error)
	ListBoardTasks(ctx context.Context, boardID int64, includeDone bool) ([]database.Task, error)
	ListTasksDueBetween(ctx context.Context, boardID int64, start, end time.Time) ([]database.Task, error)
	ListTasksDueBefore(ctx context.Context, boardID int64, before time.Time) ([]database.Task, error)
	HasDispatched(ctx context.Context, kind database.DispatchKind, subjectID string, userID int64) (bool, error)
	RecordDispatch(ctx context.Context, kind database.DispatchKind, subjectID string, userID int64, at time.Time) error
}

// Notifier delivers one rendered notification to a Telegram chat.
type Notifier interface {
	Send(ctx context.Context, telegramID int64, text string) error
}

// DeliveryError marks a notification that reached the transport but
// failed to deliver. The worker skips the ledger write for these so the
// notification is retried on a later tick.
type DeliveryError struct {
	TelegramID int64
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to chat %d failed: %v", e.TelegramID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Candidate is one notification the evaluator decided is due and not
// yet recorded in the ledger. SubjectID is the task id for reminders
// and the local calendar date for digests.
type Candidate struct {
	Kind       database.DispatchKind
	SubjectID  string
	UserID     int64
	TelegramID int64
	Text       string
}
