package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/eskovalev/taskbot/internal/database"
)

const columnsUsage = `Usage:
/columns — list columns
/columns add <name>
/columns rename <old name> = <new name>
/columns delete <name>`

// NewColumnsHandler returns a handler for /columns and its
// add/rename/delete subcommands.
func NewColumnsHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "columns"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "columns")

		if args == "" {
			listColumns(ctx, b, deps, sess, chat)
			return
		}

		sub, rest := args, ""
		if idx := strings.IndexByte(args, ' '); idx >= 0 {
			sub, rest = args[:idx], strings.TrimSpace(args[idx+1:])
		}

		switch strings.ToLower(sub) {
		case "add":
			addColumn(ctx, b, deps, sess, chat, rest)
		case "rename":
			renameColumn(ctx, b, deps, sess, chat, rest)
		case "delete":
			deleteColumn(ctx, b, deps, sess, chat, rest)
		default:
			reply(ctx, b, log, chat, columnsUsage)
		}
	}
	return h.Handle
}

func listColumns(ctx context.Context, b *bot.Bot, deps HandlerDeps, sess *session, chat int64) {
	log := deps.Logger.With("handler", "columns")

	columns, err := deps.Store.ListColumns(ctx, sess.Board.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list columns", "error", err)
		reply(ctx, b, log, chat, "❌ Could not load columns.")
		return
	}

	var text strings.Builder
	text.WriteString("📑 Columns:\n")
	for _, col := range columns {
		line := fmt.Sprintf("%d. %s", col.Position+1, col.Name)
		if col.IsDone {
			line += " ✅"
		}
		text.WriteString(line + "\n")
	}
	reply(ctx, b, log, chat, text.String())
}

func addColumn(ctx context.Context, b *bot.Bot, deps HandlerDeps, sess *session, chat int64, name string) {
	log := deps.Logger.With("handler", "columns")
	if name == "" {
		reply(ctx, b, log, chat, "Usage: /columns add <name>")
		return
	}
	if findColumn(sess.Columns, name) != nil {
		reply(ctx, b, log, chat, fmt.Sprintf("A column named %q already exists.", name))
		return
	}

	col, err := deps.Store.CreateColumn(ctx, sess.Board.ID, name)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create column", "name", name, "error", err)
		reply(ctx, b, log, chat, "❌ Could not create the column.")
		return
	}
	reply(ctx, b, log, chat, fmt.Sprintf("📑 Added column %s.", col.Name))
}

func renameColumn(ctx context.Context, b *bot.Bot, deps HandlerDeps, sess *session, chat int64, args string) {
	log := deps.Logger.With("handler", "columns")

	oldName, newName, found := strings.Cut(args, "=")
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if !found || oldName == "" || newName == "" {
		reply(ctx, b, log, chat, "Usage: /columns rename <old name> = <new name>")
		return
	}

	col := findColumn(sess.Columns, oldName)
	if col == nil {
		reply(ctx, b, log, chat, fmt.Sprintf("No column named %q.", oldName))
		return
	}

	err := deps.Store.RenameColumn(ctx, sess.Board.ID, col.ID, newName)
	if errors.Is(err, database.ErrNotFound) {
		reply(ctx, b, log, chat, fmt.Sprintf("No column named %q.", oldName))
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to rename column", "column_id", col.ID, "error", err)
		reply(ctx, b, log, chat, "❌ Could not rename the column.")
		return
	}
	reply(ctx, b, log, chat, fmt.Sprintf("📑 Renamed %q to %q.", oldName, newName))
}

func deleteColumn(ctx context.Context, b *bot.Bot, deps HandlerDeps, sess *session, chat int64, name string) {
	log := deps.Logger.With("handler", "columns")
	if name == "" {
		reply(ctx, b, log, chat, "Usage: /columns delete <name>")
		return
	}

	col := findColumn(sess.Columns, name)
	if col == nil {
		reply(ctx, b, log, chat, fmt.Sprintf("No column named %q.", name))
		return
	}

	err := deps.Store.DeleteColumn(ctx, sess.Board.ID, col.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to delete column", "column_id", col.ID, "error", err)
		reply(ctx, b, log, chat, "❌ Could not delete the column. The last column cannot be removed.")
		return
	}
	reply(ctx, b, log, chat,
		fmt.Sprintf("📑 Deleted %q. Its tasks moved to the first remaining column.", name))
}

func findColumn(columns []database.Column, name string) *database.Column {
	for i := range columns {
		if strings.EqualFold(columns[i].Name, name) {
			return &columns[i]
		}
	}
	return nil
}
