// Package main contains the entrypoint for the task bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/eskovalev/taskbot/internal/backup"
	"github.com/eskovalev/taskbot/internal/bot"
	"github.com/eskovalev/taskbot/internal/bot/handlers"
	"github.com/eskovalev/taskbot/internal/bot/tasks"
	"github.com/eskovalev/taskbot/internal/config"
	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/dispatch"
	"github.com/eskovalev/taskbot/internal/health"
	"github.com/eskovalev/taskbot/internal/logger"
	"github.com/eskovalev/taskbot/internal/telegram"
	"github.com/eskovalev/taskbot/internal/timezone"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default: ./config.yaml if present)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, *configPath)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, blocks until shutdown, and returns
// the process exit code.
func run(ctx context.Context, configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	resolver := timezone.NewResolver()

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Resolver: resolver,
		Flows:    handlers.NewFlowStore(),
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.SetCommands(ctx, tg, cmdHandlers); err != nil {
		log.Error("Failed to publish command menu", "error", err)
		return 1
	}

	notifier := telegram.NewNotifier(tg, cfg.Telegram.SendRate, cfg.Telegram.SendBurst, log)
	evaluator := dispatch.NewEvaluator(store, resolver, log)
	worker := dispatch.NewWorker(evaluator, store, notifier,
		cfg.Scheduler.CatchUpWindow, cfg.Telegram.SendTimeout, log)
	rotator := backup.NewRotator(store, store, cfg.Backup.Dir,
		cfg.Backup.Retention, cfg.Backup.LedgerRetention, log)

	tDeps := tasks.TaskDeps{
		Logger:  log,
		Config:  cfg,
		Worker:  worker,
		Rotator: rotator,
	}
	sched, err := bot.NewScheduler(log, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	healthSrv := health.NewServer(cfg.Health.Addr, store, log)
	app := bot.NewBot(log, tg, sched, healthSrv)

	log.Info("Starting bot")
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully")
	time.Sleep(time.Second)
	return 0
}
