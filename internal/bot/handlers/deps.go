package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"

	"github.com/eskovalev/taskbot/internal/config"
	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/timezone"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Resolver *timezone.Resolver
	Flows    *FlowStore
}

// timeNow is swapped out in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// session is the per-update working set every handler needs: the user
// row, their board, its columns, and a converter for their timezone.
type session struct {
	User    *database.User
	Board   *database.Board
	Columns []database.Column
	Conv    *timezone.Converter
}

// openSession bootstraps the user for a Telegram id and resolves their
// timezone. New users get the board, default columns, and the
// configured default settings.
func (d HandlerDeps) openSession(ctx context.Context, telegramID int64) (*session, error) {
	user, board, columns, err := d.Store.BootstrapUser(ctx, telegramID,
		d.Config.Scheduler.DefaultTimezone, d.Config.Scheduler.DefaultDigestTime)
	if err != nil {
		return nil, err
	}

	conv, err := d.Resolver.Resolve(user.Timezone)
	if err != nil {
		d.Logger.WarnContext(ctx, "Stored timezone is unresolvable, using UTC",
			"user_id", user.ID, "timezone", user.Timezone)
		conv, _ = d.Resolver.Resolve("UTC")
	}

	return &session{User: user, Board: board, Columns: columns, Conv: conv}, nil
}

// column returns the session column with the given id.
func (s *session) column(id int64) *database.Column {
	for i := range s.Columns {
		if s.Columns[i].ID == id {
			return &s.Columns[i]
		}
	}
	return nil
}

// reply sends a plain text message, logging delivery failures.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
