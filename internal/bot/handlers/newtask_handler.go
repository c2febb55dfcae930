package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/eskovalev/taskbot/internal/database"
)

// NewNewTaskHandler returns a handler for /new: it starts the guided
// task-creation dialog. Subsequent messages are consumed by the
// default handler until the draft completes.
func NewNewTaskHandler(deps HandlerDeps) bot.HandlerFunc {
	return newTaskHandler{deps}.Handle
}

type newTaskHandler struct {
	deps HandlerDeps
}

func (h newTaskHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "new")
	if update.Message == nil || update.Message.From == nil {
		return
	}

	draft := h.deps.Flows.Start(update.Message.From.ID)
	reply(ctx, b, log, update.Message.Chat.ID, draft.Prompt())
}

// NewCancelHandler returns a handler for /cancel: it discards an
// in-progress dialog.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "cancel")
		if update.Message == nil || update.Message.From == nil {
			return
		}

		if _, ok := deps.Flows.Active(update.Message.From.ID); !ok {
			reply(ctx, b, log, update.Message.Chat.ID, "Nothing to cancel.")
			return
		}
		deps.Flows.Clear(update.Message.From.ID)
		reply(ctx, b, log, update.Message.Chat.ID, "🚮 Dialog cancelled.")
	}
}

// NewDefaultHandler returns the catch-all text handler. It feeds
// messages into an active task-creation dialog; anything else gets a
// pointer to /help.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return defaultHandler{deps}.Handle
}

type defaultHandler struct {
	deps HandlerDeps
}

func (h defaultHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "default")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chat := update.Message.Chat.ID

	if !h.deps.Config.Telegram.UserAllowed(userID) {
		return
	}

	draft, ok := h.deps.Flows.Active(userID)
	if !ok {
		reply(ctx, b, log, chat, "I did not understand that. See /help for commands.")
		return
	}

	sess, err := h.deps.openSession(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open session", "error", err)
		reply(ctx, b, log, chat, "❌ Something went wrong. Please try again.")
		return
	}

	prompt, done := draft.Advance(update.Message.Text, sess.Conv)
	if !done {
		reply(ctx, b, log, chat, prompt)
		return
	}
	h.deps.Flows.Clear(userID)

	task := &database.Task{
		BoardID:     sess.Board.ID,
		ColumnID:    sql.NullInt64{Int64: sess.Columns[0].ID, Valid: true},
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
	}
	if draft.DueAt != nil {
		task.DueAt = sql.NullTime{Time: *draft.DueAt, Valid: true}
		task.ReminderAt = sql.NullTime{Time: database.NextReminderAt(*draft.DueAt, timeNow()), Valid: true}
	}

	if err := h.deps.Store.CreateTask(ctx, task, draft.Tags); err != nil {
		log.ErrorContext(ctx, "Failed to create task", "error", err)
		reply(ctx, b, log, chat, "❌ Could not save the task.")
		return
	}

	text := fmt.Sprintf("✨ Created #%d %s in %s.", task.ID, task.Title, sess.Columns[0].Name)
	if task.DueAt.Valid {
		text += fmt.Sprintf("\nDue %s, reminder %s.",
			sess.Conv.FormatLocal(task.DueAt.Time), sess.Conv.FormatLocal(task.ReminderAt.Time))
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chat,
		Text:        text,
		ReplyMarkup: taskActionsKeyboard(task.ID),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send confirmation", "error", err)
	}
}
