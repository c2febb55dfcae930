package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a handler with its registration data
// and middleware. Description, when set, appears in the Telegram
// command menu.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Description string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all bot
// handlers, each wrapped with the allowlist middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	allowed := []tgbot.Middleware{AllowedUsersOnly(deps)}

	command := func(pattern, description string, handler tgbot.HandlerFunc) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Description: description,
			Handler:     handler,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  allowed,
		}
	}

	handlers := map[string]RegisteredHandler{
		"/start":    command("start", "Set up your board", NewStartHandler(deps)),
		"/help":     command("help", "Show all commands", NewHelpHandler(deps)),
		"/new":      command("new", "Create a task", NewNewTaskHandler(deps)),
		"/cancel":   command("cancel", "Cancel the current dialog", NewCancelHandler(deps)),
		"/board":    command("board", "Show the board", NewBoardHandler(deps)),
		"/columns":  command("columns", "Manage columns", NewColumnsHandler(deps)),
		"/today":    command("today", "Tasks due today", NewTodayHandler(deps)),
		"/overdue":  command("overdue", "Overdue tasks", NewOverdueHandler(deps)),
		"/done":     command("done", "Complete a task", NewDoneHandler(deps)),
		"/move":     command("move", "Move a task", NewMoveHandler(deps)),
		"/postpone": command("postpone", "Push a deadline", NewPostponeHandler(deps)),
		"/edit":     command("edit", "Rename a task", NewEditHandler(deps)),
		"/delete":   command("delete", "Delete a task", NewDeleteHandler(deps)),
		"/settags":  command("settags", "Replace a task's tags", NewSetTagsHandler(deps)),
		"/search":   command("search", "Search tasks", NewSearchHandler(deps)),
		"/tags":     command("tags", "Tag usage", NewTagsHandler(deps)),
		"/timezone": command("timezone", "Set your timezone", NewTimezoneHandler(deps)),
		"/digest":   command("digest", "Daily digest settings", NewDigestHandler(deps)),
		"/settings": command("settings", "Show settings", NewSettingsHandler(deps)),
		"/export":   command("export", "Export the board", NewExportHandler(deps)),
	}

	// One callback handler routes every inline keyboard press.
	handlers["callbacks"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     "",
		Handler:     NewCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  allowed,
	}

	return handlers
}
