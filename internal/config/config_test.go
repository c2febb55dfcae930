// Package config_test tests configuration validation.
package config_test

import (
	"testing"
	"time"

	"github.com/eskovalev/taskbot/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Log: config.LogConfig{Level: "info", Format: "json"},
		Telegram: config.TelegramConfig{
			Token:       "123456:test-token",
			SendTimeout: 10 * time.Second,
			SendRate:    25,
			SendBurst:   5,
		},
		Database: config.DatabaseConfig{Path: "taskbot.db"},
		Scheduler: config.SchedulerConfig{
			TickInterval:      30 * time.Second,
			CatchUpWindow:     6 * time.Hour,
			DefaultTimezone:   "Europe/Berlin",
			DefaultDigestTime: "09:00",
		},
		Backup: config.BackupConfig{
			Dir:             "backups",
			Interval:        24 * time.Hour,
			Retention:       14 * 24 * time.Hour,
			LedgerRetention: 90 * 24 * time.Hour,
		},
		Health: config.HealthConfig{Addr: ":8080"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:   "empty allowlist is valid",
			mutate: func(c *config.Config) { c.Telegram.AllowedUserIDs = nil },
		},
		{
			name:    "missing token",
			mutate:  func(c *config.Config) { c.Telegram.Token = "" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid timezone",
			mutate:  func(c *config.Config) { c.Scheduler.DefaultTimezone = "Mars/Olympus_Mons" },
			wantErr: true,
		},
		{
			name:    "invalid digest time",
			mutate:  func(c *config.Config) { c.Scheduler.DefaultDigestTime = "25:00" },
			wantErr: true,
		},
		{
			name:    "tick interval too long",
			mutate:  func(c *config.Config) { c.Scheduler.TickInterval = time.Hour },
			wantErr: true,
		},
		{
			name:    "negative allowed user id",
			mutate:  func(c *config.Config) { c.Telegram.AllowedUserIDs = []int64{42, -1} },
			wantErr: true,
		},
		{
			name:    "retention below an hour",
			mutate:  func(c *config.Config) { c.Backup.Retention = time.Minute },
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Validate passed, want error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	// t.Setenv forbids t.Parallel; Load also reads global viper state.
	t.Setenv("BOT_TELEGRAM_TOKEN", "123456:env-token")
	t.Setenv("BOT_LOG_LEVEL", "debug")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.Token != "123456:env-token" {
		t.Errorf("token = %q, want the environment value", cfg.Telegram.Token)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Errorf("tick interval = %v, want the 30s default", cfg.Scheduler.TickInterval)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123456:env-token")

	if _, err := config.Load("does-not-exist.yaml"); err == nil {
		t.Error("Load with a missing explicit config file should fail")
	}
}

func TestUserAllowed(t *testing.T) {
	t.Parallel()

	open := config.TelegramConfig{}
	if !open.UserAllowed(42) {
		t.Error("empty allowlist should admit everyone")
	}

	restricted := config.TelegramConfig{AllowedUserIDs: []int64{42, 99}}
	if !restricted.UserAllowed(99) {
		t.Error("listed user should be admitted")
	}
	if restricted.UserAllowed(7) {
		t.Error("unlisted user should be rejected")
	}
}
