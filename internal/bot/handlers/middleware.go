// Package handlers contains Telegram bot command, callback, and
// message handlers, their registration logic, and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// senderID extracts the sending user's Telegram id from an update,
// reporting false for updates without a sender.
func senderID(update *models.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, true
	default:
		return 0, false
	}
}

// chatID extracts the chat to answer into.
func chatID(update *models.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message.Message != nil {
			return update.CallbackQuery.Message.Message.Chat.ID, true
		}
		if update.CallbackQuery.Message.InaccessibleMessage != nil {
			return update.CallbackQuery.Message.InaccessibleMessage.Chat.ID, true
		}
	}
	return 0, false
}

// AllowedUsersOnly creates a middleware enforcing the configured user
// allowlist. An empty allowlist admits everyone; this is a single-user
// bot in spirit, but nothing stops a small shared deployment.
func AllowedUsersOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			userID, ok := senderID(update)
			if !ok {
				return
			}

			if !deps.Config.Telegram.UserAllowed(userID) {
				log := deps.Logger.With("middleware", "allowed_users")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID)

				if chat, ok := chatID(update); ok {
					reply(ctx, b, log, chat, "🚫 Access denied.")
				}
				return
			}

			next(ctx, b, update)
		}
	}
}
