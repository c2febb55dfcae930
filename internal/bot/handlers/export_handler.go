package handlers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/eskovalev/taskbot/internal/export"
)

// NewExportHandler returns a handler for /export. Without arguments it
// offers the formats as buttons; "/export markdown" and "/export csv"
// export directly.
func NewExportHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "export"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "export")

		switch args {
		case "":
			_, err := b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:      chat,
				Text:        "Which format?",
				ReplyMarkup: exportKeyboard(),
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to send export keyboard", "error", err)
			}
		case "markdown", "md":
			sendExport(ctx, b, deps, sess, chat, export.FormatMarkdown)
		case "csv":
			sendExport(ctx, b, deps, sess, chat, export.FormatCSV)
		default:
			reply(ctx, b, log, chat, "Usage: /export [markdown|csv]")
		}
	}
	return h.Handle
}

// sendExport renders the board and uploads it as a document.
func sendExport(ctx context.Context, b *bot.Bot, deps HandlerDeps, sess *session, chat int64, format export.Format) {
	log := deps.Logger.With("handler", "export")

	tasks, err := deps.Store.ListBoardTasks(ctx, sess.Board.ID, true)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load board for export", "error", err)
		reply(ctx, b, log, chat, "❌ Could not export the board.")
		return
	}

	payload, err := export.Build(format, sess.Board, sess.Columns, tasks, sess.Conv, timeNow())
	if err != nil {
		log.ErrorContext(ctx, "Failed to render export", "format", format, "error", err)
		reply(ctx, b, log, chat, "❌ Could not export the board.")
		return
	}

	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chat,
		Document: &models.InputFileUpload{
			Filename: payload.FileName,
			Data:     bytes.NewReader(payload.Data),
		},
		Caption: fmt.Sprintf("📤 %s export, %d tasks", format, len(tasks)),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to upload export", "error", err)
		reply(ctx, b, log, chat, "❌ Could not upload the export file.")
		return
	}

	if err := deps.Store.RecordExport(ctx, sess.User.ID, string(format), payload.FileName); err != nil {
		log.WarnContext(ctx, "Failed to record export", "error", err)
	}
}
