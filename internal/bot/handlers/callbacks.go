package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/export"
)

// NewCallbackHandler returns the handler for all inline keyboard
// presses. Callback data is routed by its prefix.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback")
	if update.CallbackQuery == nil {
		return
	}
	query := update.CallbackQuery

	// Always answer so the client stops its spinner.
	defer func() {
		_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
		if err != nil {
			log.WarnContext(ctx, "Failed to answer callback query", "error", err)
		}
	}()

	chat, ok := chatID(update)
	if !ok {
		return
	}

	sess, err := h.deps.openSession(ctx, query.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open session", "error", err)
		return
	}

	switch {
	case strings.HasPrefix(query.Data, cbTaskDone+":"):
		h.handleDone(ctx, b, sess, chat, strings.TrimPrefix(query.Data, cbTaskDone+":"))
	case strings.HasPrefix(query.Data, cbTaskPostpone+":"):
		h.handlePostpone(ctx, b, sess, chat, strings.TrimPrefix(query.Data, cbTaskPostpone+":"))
	case strings.HasPrefix(query.Data, cbTaskMove+":"):
		h.handleMovePrompt(ctx, b, sess, chat, strings.TrimPrefix(query.Data, cbTaskMove+":"))
	case strings.HasPrefix(query.Data, cbMoveTo+":"):
		h.handleMove(ctx, b, sess, chat, strings.TrimPrefix(query.Data, cbMoveTo+":"))
	case strings.HasPrefix(query.Data, cbExport+":"):
		h.handleExport(ctx, b, sess, chat, strings.TrimPrefix(query.Data, cbExport+":"))
	default:
		log.WarnContext(ctx, "Unknown callback data", "data", query.Data)
	}
}

func (h callbackHandler) handleDone(ctx context.Context, b *bot.Bot, sess *session, chat int64, payload string) {
	log := h.deps.Logger.With("handler", "callback")
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return
	}

	task, err := h.deps.Store.CompleteTask(ctx, sess.Board.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		reply(ctx, b, log, chat, fmt.Sprintf("Task #%d no longer exists.", id))
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to complete task", "task_id", id, "error", err)
		return
	}
	reply(ctx, b, log, chat, fmt.Sprintf("✅ Done: %s", task.Title))
}

func (h callbackHandler) handlePostpone(ctx context.Context, b *bot.Bot, sess *session, chat int64, payload string) {
	log := h.deps.Logger.With("handler", "callback")
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return
	}
	hours, err := strconv.Atoi(parts[1])
	if err != nil || hours <= 0 {
		return
	}

	task, err := h.deps.Store.PostponeTask(ctx, sess.Board.ID, id, time.Duration(hours)*time.Hour, timeNow())
	if errors.Is(err, database.ErrNotFound) {
		reply(ctx, b, log, chat, fmt.Sprintf("Task #%d no longer exists.", id))
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to postpone task", "task_id", id, "error", err)
		return
	}
	reply(ctx, b, log, chat,
		fmt.Sprintf("⏭ %q is now due %s.", task.Title, sess.Conv.FormatLocal(task.DueAt.Time)))
}

func (h callbackHandler) handleMovePrompt(ctx context.Context, b *bot.Bot, sess *session, chat int64, payload string) {
	log := h.deps.Logger.With("handler", "callback")
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return
	}

	task, err := h.deps.Store.GetTask(ctx, sess.Board.ID, id)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load task", "task_id", id, "error", err)
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chat,
		Text:        fmt.Sprintf("Move #%d %q to:", task.ID, task.Title),
		ReplyMarkup: moveKeyboard(task.ID, sess.Columns),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send move keyboard", "error", err)
	}
}

func (h callbackHandler) handleMove(ctx context.Context, b *bot.Bot, sess *session, chat int64, payload string) {
	log := h.deps.Logger.With("handler", "callback")
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		return
	}
	taskID, err1 := strconv.ParseInt(parts[0], 10, 64)
	columnID, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}

	column := sess.column(columnID)
	if column == nil {
		return
	}

	task, err := h.deps.Store.MoveTask(ctx, sess.Board.ID, taskID, columnID)
	if errors.Is(err, database.ErrNotFound) {
		reply(ctx, b, log, chat, fmt.Sprintf("Task #%d no longer exists.", taskID))
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to move task", "task_id", taskID, "error", err)
		return
	}
	reply(ctx, b, log, chat, fmt.Sprintf("📦 Moved %q to %s.", task.Title, column.Name))
}

func (h callbackHandler) handleExport(ctx context.Context, b *bot.Bot, sess *session, chat int64, payload string) {
	switch payload {
	case "markdown":
		sendExport(ctx, b, h.deps, sess, chat, export.FormatMarkdown)
	case "csv":
		sendExport(ctx, b, h.deps, sess, chat, export.FormatCSV)
	}
}
