package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command. It
// bootstraps the user's board and introduces the bot.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	chat := update.Message.Chat.ID

	sess, err := h.deps.openSession(ctx, update.Message.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to bootstrap user", "error", err)
		reply(ctx, b, log, chat, "❌ Something went wrong. Please try again.")
		return
	}

	text := fmt.Sprintf(
		"👋 Welcome! Your board %q is ready with columns Inbox, Todo, Doing, and Done.\n\n"+
			"Create a task with /new, see the board with /board, and check /help for everything else.\n\n"+
			"Your timezone is %s and the daily digest arrives at %s. Change them with /timezone and /digest.",
		sess.Board.Name, sess.User.Timezone, sess.User.DigestTime)
	reply(ctx, b, log, chat, text)
}

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

const helpText = `📖 Commands

Tasks
/new — create a task (guided dialog)
/done <id> — complete a task
/move <id> — move a task to another column
/postpone <id> <1h|1d|1w> — push a deadline
/edit <id> <title> — rename a task
/settags <id> [tags] — replace a task's tags
/delete <id> — delete a task

Views
/board — the whole board
/columns — list or manage columns
/today — tasks due today
/overdue — overdue tasks
/search <text> — search title and description
/tags — tag usage

Settings
/timezone <IANA zone> — e.g. Europe/Berlin
/digest on|off [HH:MM] — daily digest delivery
/settings — show current settings

Data
/export — download the board as Markdown or CSV`

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	reply(ctx, b, h.deps.Logger.With("handler", "help"), update.Message.Chat.ID, helpText)
}
