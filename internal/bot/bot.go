// Package bot implements application lifecycle management and
// component orchestration: the Telegram listener, the scheduler, and
// the health endpoint run as one errgroup.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/eskovalev/taskbot/internal/health"
)

// Bot manages the lifecycle of all application components.
type Bot struct {
	logger    *slog.Logger
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	health    *health.Server
}

// NewBot creates the orchestrator.
func NewBot(logger *slog.Logger, tgBot *tgbot.Bot, scheduler *Scheduler, healthSrv *health.Server) *Bot {
	return &Bot{
		logger:    logger.With("component", "orchestrator"),
		tgBot:     tgBot,
		scheduler: scheduler,
		health:    healthSrv,
	}
}

// Run starts all components and blocks until the context is cancelled
// or a component fails. Shutdown is graceful: the scheduler finishes
// its in-flight jobs and the health listener drains before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram listener")
		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram listener stopped")

		if gCtx.Err() == nil {
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler")
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return b.health.Run(gCtx)
	})

	b.logger.Info("All components running")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Stopped gracefully")
	return nil
}
