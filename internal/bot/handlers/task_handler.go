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
)

// commandArgs strips the leading /command (with optional @botname) and
// returns the rest of the message.
func commandArgs(text string) string {
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parseTaskID reads a task id from the head of the arguments.
func parseTaskID(args string) (int64, string, error) {
	fields := strings.SplitN(args, " ", 2)
	if fields[0] == "" {
		return 0, "", fmt.Errorf("no task id given")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("%q is not a task id", fields[0])
	}
	rest := ""
	if len(fields) == 2 {
		rest = strings.TrimSpace(fields[1])
	}
	return id, rest, nil
}

// parseDelay reads a postpone offset like "45m", "3h", "1d", or "2w".
func parseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("no delay given")
	}

	unit := time.Duration(0)
	switch s[len(s)-1] {
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	}
	if unit > 0 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("cannot parse delay %q", s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("cannot parse delay %q", s)
	}
	return d, nil
}

// taskCommand factors the boilerplate shared by all /cmd <id> handlers.
type taskCommand struct {
	deps HandlerDeps
	name string
	run  func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string)
}

func (h taskCommand) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)
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

	h.run(ctx, b, sess, chat, commandArgs(update.Message.Text))
}

// NewDoneHandler returns a handler for /done <id>.
func NewDoneHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "done"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "done")
		id, _, err := parseTaskID(args)
		if err != nil {
			reply(ctx, b, log, chat, "Usage: /done <task id>")
			return
		}

		task, err := deps.Store.CompleteTask(ctx, sess.Board.ID, id)
		if errors.Is(err, database.ErrNotFound) {
			reply(ctx, b, log, chat, fmt.Sprintf("Task #%d not found.", id))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to complete task", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not complete the task.")
			return
		}
		reply(ctx, b, log, chat, fmt.Sprintf("✅ Done: %s", task.Title))
	}
	return h.Handle
}

// NewMoveHandler returns a handler for /move <id> [column]. Without a
// column name it offers the board's columns as buttons.
func NewMoveHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "move"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "move")
		id, rest, err := parseTaskID(args)
		if err != nil {
			reply(ctx, b, log, chat, "Usage: /move <task id> [column]")
			return
		}

		task, err := deps.Store.GetTask(ctx, sess.Board.ID, id)
		if errors.Is(err, database.ErrNotFound) {
			reply(ctx, b, log, chat, fmt.Sprintf("Task #%d not found.", id))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to load task", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not load the task.")
			return
		}

		if rest == "" {
			_, err := b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:      chat,
				Text:        fmt.Sprintf("Move #%d %q to:", task.ID, task.Title),
				ReplyMarkup: moveKeyboard(task.ID, sess.Columns),
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to send move keyboard", "error", err)
			}
			return
		}

		var target *database.Column
		for i := range sess.Columns {
			if strings.EqualFold(sess.Columns[i].Name, rest) {
				target = &sess.Columns[i]
				break
			}
		}
		if target == nil {
			reply(ctx, b, log, chat, fmt.Sprintf("No column named %q.", rest))
			return
		}

		moved, err := deps.Store.MoveTask(ctx, sess.Board.ID, id, target.ID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to move task", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not move the task.")
			return
		}
		reply(ctx, b, log, chat, fmt.Sprintf("📦 Moved %q to %s.", moved.Title, target.Name))
	}
	return h.Handle
}

// NewPostponeHandler returns a handler for /postpone <id> <delay>.
func NewPostponeHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "postpone"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "postpone")
		id, rest, err := parseTaskID(args)
		if err != nil {
			reply(ctx, b, log, chat, "Usage: /postpone <task id> <delay>, e.g. /postpone 12 1d")
			return
		}
		delay, err := parseDelay(rest)
		if err != nil {
			reply(ctx, b, log, chat, "I understand delays like 45m, 3h, 1d, or 2w.")
			return
		}

		task, err := deps.Store.PostponeTask(ctx, sess.Board.ID, id, delay, timeNow())
		if errors.Is(err, database.ErrNotFound) {
			reply(ctx, b, log, chat, fmt.Sprintf("Task #%d not found.", id))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to postpone task", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not postpone the task.")
			return
		}
		reply(ctx, b, log, chat,
			fmt.Sprintf("⏭ %q is now due %s.", task.Title, sess.Conv.FormatLocal(task.DueAt.Time)))
	}
	return h.Handle
}

// NewEditHandler returns a handler for /edit <id> <new title>.
func NewEditHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "edit"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "edit")
		id, rest, err := parseTaskID(args)
		if err != nil || rest == "" {
			reply(ctx, b, log, chat, "Usage: /edit <task id> <new title>")
			return
		}

		err = deps.Store.UpdateTaskTitle(ctx, sess.Board.ID, id, rest)
		if errors.Is(err, database.ErrNotFound) {
			reply(ctx, b, log, chat, fmt.Sprintf("Task #%d not found.", id))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to rename task", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not rename the task.")
			return
		}
		reply(ctx, b, log, chat, fmt.Sprintf("✏️ Task #%d is now %q.", id, rest))
	}
	return h.Handle
}

// NewDeleteHandler returns a handler for /delete <id>.
func NewDeleteHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "delete"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "delete")
		id, _, err := parseTaskID(args)
		if err != nil {
			reply(ctx, b, log, chat, "Usage: /delete <task id>")
			return
		}

		err = deps.Store.DeleteTask(ctx, sess.Board.ID, id)
		if errors.Is(err, database.ErrNotFound) {
			reply(ctx, b, log, chat, fmt.Sprintf("Task #%d not found.", id))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to delete task", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not delete the task.")
			return
		}
		reply(ctx, b, log, chat, fmt.Sprintf("🗑 Deleted task #%d.", id))
	}
	return h.Handle
}

// NewSetTagsHandler returns a handler for /settags <id> [tags].
// Without tags it clears the task's tag set.
func NewSetTagsHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "settags"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "settags")
		id, rest, err := parseTaskID(args)
		if err != nil {
			reply(ctx, b, log, chat, "Usage: /settags <task id> [tags], e.g. /settags 12 work urgent")
			return
		}

		tags := splitTags(rest)
		err = deps.Store.SetTaskTags(ctx, sess.Board.ID, id, tags)
		if errors.Is(err, database.ErrNotFound) {
			reply(ctx, b, log, chat, fmt.Sprintf("Task #%d not found.", id))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to set tags", "task_id", id, "error", err)
			reply(ctx, b, log, chat, "❌ Could not update the tags.")
			return
		}

		if len(tags) == 0 {
			reply(ctx, b, log, chat, fmt.Sprintf("🏷 Cleared tags on task #%d.", id))
			return
		}
		reply(ctx, b, log, chat, fmt.Sprintf("🏷 Task #%d tagged #%s.", id, strings.Join(tags, " #")))
	}
	return h.Handle
}

// NewSearchHandler returns a handler for /search <text>.
func NewSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "search"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "search")
		if args == "" {
			reply(ctx, b, log, chat, "Usage: /search <text>")
			return
		}

		tasks, err := deps.Store.SearchTasks(ctx, sess.Board.ID, args)
		if err != nil {
			log.ErrorContext(ctx, "Search failed", "error", err)
			reply(ctx, b, log, chat, "❌ Search failed.")
			return
		}
		if len(tasks) == 0 {
			reply(ctx, b, log, chat, fmt.Sprintf("No tasks matching %q.", args))
			return
		}

		var text strings.Builder
		fmt.Fprintf(&text, "🔍 %d matching %q:\n", len(tasks), args)
		for _, task := range tasks {
			text.WriteString(renderTaskLine(task, sess.Conv) + "\n")
		}
		reply(ctx, b, log, chat, text.String())
	}
	return h.Handle
}

// NewTagsHandler returns a handler for /tags.
func NewTagsHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "tags"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, _ string) {
		log := deps.Logger.With("handler", "tags")

		stats, err := deps.Store.ListTagStats(ctx, sess.Board.ID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list tags", "error", err)
			reply(ctx, b, log, chat, "❌ Could not load tags.")
			return
		}
		if len(stats) == 0 {
			reply(ctx, b, log, chat, "No tags yet. Add some when creating tasks with /new.")
			return
		}

		var text strings.Builder
		text.WriteString("🏷 Tags:\n")
		for _, stat := range stats {
			fmt.Fprintf(&text, "#%s — %d\n", stat.Name, stat.Count)
		}
		reply(ctx, b, log, chat, text.String())
	}
	return h.Handle
}
