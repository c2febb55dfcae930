package telegram

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"github.com/eskovalev/taskbot/internal/dispatch"
)

// Notifier sends scheduled notifications through the Telegram bot,
// rate limited to stay under Telegram's global send ceiling. It
// implements dispatch.Notifier.
type Notifier struct {
	bot     *bot.Bot
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewNotifier creates a Notifier sending at most sendRate messages per
// second with the given burst.
func NewNotifier(b *bot.Bot, sendRate float64, burst int, logger *slog.Logger) *Notifier {
	return &Notifier{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
		logger:  logger.With("component", "notifier"),
	}
}

// Send delivers one notification to a chat. Transport failures come
// back as *dispatch.DeliveryError so the worker retries them on a
// later tick instead of recording them as sent.
func (n *Notifier) Send(ctx context.Context, telegramID int64, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return &dispatch.DeliveryError{TelegramID: telegramID, Err: err}
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: telegramID,
		Text:   text,
	})
	if err != nil {
		return &dispatch.DeliveryError{TelegramID: telegramID, Err: err}
	}

	n.logger.DebugContext(ctx, "Notification delivered", "chat_id", telegramID)
	return nil
}
