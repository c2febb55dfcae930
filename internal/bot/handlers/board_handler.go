package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/timezone"
)

// renderTaskLine renders one task for a list view.
func renderTaskLine(task database.Task, conv *timezone.Converter) string {
	marks := map[int]string{1: "🔴", 2: "🟡", 3: "🟢"}
	mark := marks[task.Priority]
	if mark == "" {
		mark = "•"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %s", mark, task.ID, task.Title)
	if task.DueAt.Valid {
		fmt.Fprintf(&b, " — due %s", conv.FormatLocal(task.DueAt.Time))
	}
	if len(task.Tags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(task.Tags, ", "))
	}
	return b.String()
}

// NewBoardHandler returns a handler for /board: the full board grouped
// by column.
func NewBoardHandler(deps HandlerDeps) bot.HandlerFunc {
	return boardHandler{deps}.Handle
}

type boardHandler struct {
	deps HandlerDeps
}

func (h boardHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "board")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chat := update.Message.Chat.ID

	sess, err := h.deps.openSession(ctx, update.Message.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open session", "error", err)
		reply(ctx, b, log, chat, "❌ Something went wrong. Please try again.")
		return
	}

	tasks, err := h.deps.Store.ListBoardTasks(ctx, sess.Board.ID, true)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list board tasks", "error", err)
		reply(ctx, b, log, chat, "❌ Could not load the board.")
		return
	}

	byColumn := make(map[int64][]database.Task)
	for _, task := range tasks {
		if task.ColumnID.Valid {
			byColumn[task.ColumnID.Int64] = append(byColumn[task.ColumnID.Int64], task)
		}
	}

	var text strings.Builder
	fmt.Fprintf(&text, "📋 %s\n", sess.Board.Name)
	for _, col := range sess.Columns {
		group := byColumn[col.ID]
		fmt.Fprintf(&text, "\n%s (%d)\n", col.Name, len(group))
		if len(group) == 0 {
			text.WriteString("  —\n")
			continue
		}
		for _, task := range group {
			text.WriteString("  " + renderTaskLine(task, sess.Conv) + "\n")
		}
	}
	reply(ctx, b, log, chat, text.String())
}

// NewTodayHandler returns a handler for /today: open tasks whose
// deadline falls on the user's current local date.
func NewTodayHandler(deps HandlerDeps) bot.HandlerFunc {
	return dueViewHandler{deps: deps, mode: "today"}.Handle
}

// NewOverdueHandler returns a handler for /overdue: open tasks whose
// deadline has already passed the start of the current local date.
func NewOverdueHandler(deps HandlerDeps) bot.HandlerFunc {
	return dueViewHandler{deps: deps, mode: "overdue"}.Handle
}

type dueViewHandler struct {
	deps HandlerDeps
	mode string
}

func (h dueViewHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.mode)
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chat := update.Message.Chat.ID

	sess, err := h.deps.openSession(ctx, update.Message.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open session", "error", err)
		reply(ctx, b, log, chat, "❌ Something went wrong. Please try again.")
		return
	}

	now := timeNow()
	dayStart, dayEnd := sess.Conv.DayBounds(sess.Conv.Today(now))

	var tasks []database.Task
	var heading, empty string
	if h.mode == "today" {
		tasks, err = h.deps.Store.ListTasksDueBetween(ctx, sess.Board.ID, dayStart, dayEnd)
		heading, empty = "📅 Due today", "Nothing due today. 🎉"
	} else {
		tasks, err = h.deps.Store.ListTasksDueBefore(ctx, sess.Board.ID, dayStart)
		heading, empty = "❗ Overdue", "Nothing overdue. 🎉"
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to list due tasks", "error", err)
		reply(ctx, b, log, chat, "❌ Could not load tasks.")
		return
	}

	if len(tasks) == 0 {
		reply(ctx, b, log, chat, empty)
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s (%d)\n", heading, len(tasks))
	for _, task := range tasks {
		text.WriteString(renderTaskLine(task, sess.Conv) + "\n")
	}
	reply(ctx, b, log, chat, text.String())
}
