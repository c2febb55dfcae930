package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/timezone"
)

// Evaluator computes the due set: every reminder and digest that
// should fire in a window and has no ledger record yet.
type Evaluator struct {
	store    Store
	resolver *timezone.Resolver
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(store Store, resolver *timezone.Resolver, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		resolver: resolver,
		logger:   logger.With("component", "evaluator"),
	}
}

// Evaluate returns the ordered candidate list for the window
// (windowStart, now]: reminders whose instant falls inside it, then
// for each user with the digest enabled whose local wall clock has
// passed their digest time, one digest for the local calendar date.
// Candidates are ordered by user id, reminders before the digest.
func (e *Evaluator) Evaluate(ctx context.Context, now, windowStart time.Time) ([]Candidate, error) {
	var candidates []Candidate

	reminders, err := e.evaluateReminders(ctx, now, windowStart)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, reminders...)

	digests, err := e.evaluateDigests(ctx, now)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, digests...)

	// Reminders come pre-sorted by (user, due date) and were appended
	// before digests, so a stable sort by user id keeps each user's
	// reminders ahead of their digest.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UserID < candidates[j].UserID
	})

	return candidates, nil
}

func (e *Evaluator) evaluateReminders(ctx context.Context, now, windowStart time.Time) ([]Candidate, error) {
	items, err := e.store.ListReminderDue(ctx, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate reminders: %w", err)
	}

	var candidates []Candidate
	for _, item := range items {
		subject := strconv.FormatInt(item.Task.ID, 10)

		sent, err := e.store.HasDispatched(ctx, database.DispatchReminder, subject, item.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check reminder ledger: %w", err)
		}
		if sent {
			continue
		}

		candidates = append(candidates, Candidate{
			Kind:       database.DispatchReminder,
			SubjectID:  subject,
			UserID:     item.UserID,
			TelegramID: item.TelegramID,
			Text:       RenderReminder(item.Task, e.converterFor(item.UserID, item.Timezone)),
		})
	}
	return candidates, nil
}

func (e *Evaluator) evaluateDigests(ctx context.Context, now time.Time) ([]Candidate, error) {
	users, err := e.store.ListDigestUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list digest users: %w", err)
	}

	var candidates []Candidate
	for _, user := range users {
		conv := e.converterFor(user.ID, user.Timezone)
		date, clock := conv.ToLocal(now)

		target, err := timezone.ParseWallClock(user.DigestTime)
		if err != nil {
			e.logger.WarnContext(ctx, "Skipping digest: stored digest time is unparseable",
				"user_id", user.ID, "digest_time", user.DigestTime)
			continue
		}
		if !clock.AtOrAfter(target) {
			continue
		}

		subject := date.String()
		sent, err := e.store.HasDispatched(ctx, database.DispatchDigest, subject, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check digest ledger: %w", err)
		}
		if sent {
			continue
		}

		text, err := e.renderDigestFor(ctx, user, date, conv)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				e.logger.WarnContext(ctx, "Skipping digest: user has no board", "user_id", user.ID)
				continue
			}
			return nil, err
		}

		candidates = append(candidates, Candidate{
			Kind:       database.DispatchDigest,
			SubjectID:  subject,
			UserID:     user.ID,
			TelegramID: user.TelegramID,
			Text:       text,
		})
	}
	return candidates, nil
}

func (e *Evaluator) renderDigestFor(ctx context.Context, user database.User, date timezone.Date, conv *timezone.Converter) (string, error) {
	board, err := e.store.GetBoardByOwner(ctx, user.ID)
	if err != nil {
		return "", err
	}

	columns, err := e.store.ListColumns(ctx, board.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load columns for digest: %w", err)
	}
	open, err := e.store.ListBoardTasks(ctx, board.ID, false)
	if err != nil {
		return "", fmt.Errorf("failed to load open tasks for digest: %w", err)
	}

	dayStart, dayEnd := conv.DayBounds(date)
	today, err := e.store.ListTasksDueBetween(ctx, board.ID, dayStart, dayEnd)
	if err != nil {
		return "", fmt.Errorf("failed to load today's tasks for digest: %w", err)
	}
	overdue, err := e.store.ListTasksDueBefore(ctx, board.ID, dayStart)
	if err != nil {
		return "", fmt.Errorf("failed to load overdue tasks for digest: %w", err)
	}

	return RenderDigest(date, columns, open, overdue, today, conv), nil
}

// converterFor resolves the user's zone, falling back to UTC so a
// corrupt stored zone never blocks a notification.
func (e *Evaluator) converterFor(userID int64, zone string) *timezone.Converter {
	conv, err := e.resolver.Resolve(zone)
	if err != nil {
		e.logger.Warn("Stored timezone is unresolvable, using UTC",
			"user_id", userID, "timezone", zone)
		conv, _ = e.resolver.Resolve("UTC")
	}
	return conv
}
