package handlers

import (
	"fmt"

	"github.com/go-telegram/bot/models"

	"github.com/eskovalev/taskbot/internal/database"
)

// Callback data prefixes. Payload fields are colon separated.
const (
	cbTaskDone     = "task:done"
	cbTaskPostpone = "task:post"
	cbTaskMove     = "task:move"
	cbMoveTo       = "move"
	cbExport       = "export"
)

// taskActionsKeyboard offers the quick actions for one task.
func taskActionsKeyboard(taskID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Done", CallbackData: fmt.Sprintf("%s:%d", cbTaskDone, taskID)},
			{Text: "⏭ +1 day", CallbackData: fmt.Sprintf("%s:%d:24", cbTaskPostpone, taskID)},
			{Text: "📦 Move", CallbackData: fmt.Sprintf("%s:%d", cbTaskMove, taskID)},
		}},
	}
}

// moveKeyboard lists the board's columns as move targets.
func moveKeyboard(taskID int64, columns []database.Column) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(columns))
	for _, col := range columns {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         col.Name,
			CallbackData: fmt.Sprintf("%s:%d:%d", cbMoveTo, taskID, col.ID),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// exportKeyboard offers the export formats.
func exportKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Markdown", CallbackData: cbExport + ":markdown"},
			{Text: "CSV", CallbackData: cbExport + ":csv"},
		}},
	}
}
