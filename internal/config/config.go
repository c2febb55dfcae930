// Package config manages application configuration from default values,
// config.yaml, and BOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/eskovalev/taskbot/internal/timezone"
)

// ErrConfiguration wraps every configuration loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration. Values can be set via
// environment variables prefixed with BOT_ (e.g. BOT_TELEGRAM_TOKEN)
// or through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Health    HealthConfig    `mapstructure:"health"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TelegramConfig holds the bot token and access control settings.
// An empty AllowedUserIDs list means every Telegram user may use the bot.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"            validate:"required"`
	AllowedUserIDs []int64       `mapstructure:"allowed_user_ids" validate:"dive,gt=0"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"     validate:"required,min=1s,max=1m"`
	SendRate       float64       `mapstructure:"send_rate"        validate:"required,gt=0"`
	SendBurst      int           `mapstructure:"send_burst"       validate:"required,gt=0"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SchedulerConfig holds the dispatch loop settings. DefaultTimezone and
// DefaultDigestTime seed new users; both are validated here so the
// dispatch loop never has to.
type SchedulerConfig struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"       validate:"required,min=1s,max=10m"`
	CatchUpWindow     time.Duration `mapstructure:"catch_up_window"     validate:"required,min=1m"`
	DefaultTimezone   string        `mapstructure:"default_timezone"    validate:"required,timezone"`
	DefaultDigestTime string        `mapstructure:"default_digest_time" validate:"required,hhmm"`
}

// BackupConfig holds snapshot rotation settings.
type BackupConfig struct {
	Dir             string        `mapstructure:"dir"              validate:"required"`
	Interval        time.Duration `mapstructure:"interval"         validate:"required,min=1m"`
	Retention       time.Duration `mapstructure:"retention"        validate:"required,min=1h"`
	LedgerRetention time.Duration `mapstructure:"ledger_retention" validate:"required,min=24h"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml (or the explicit file path, when given)
// 3. BOT_* environment variables
func Load(path string) (*Config, error) {
	setDefaults()

	if err := readConfig(path); err != nil {
		return nil, fmt.Errorf("%w: failed to load config file: %v", ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// readConfig initializes and loads the configuration using viper. With
// no explicit path a missing config.yaml is fine; defaults and
// environment apply. An explicit path must exist.
func readConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about. The token
	// has no default, so it needs an explicit binding for
	// BOT_TELEGRAM_TOKEN to reach Unmarshal.
	if err := viper.BindEnv("telegram.token"); err != nil {
		return fmt.Errorf("failed to bind token environment variable: %v", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %v", err)
		}
	}

	return nil
}

// setDefaults sets default values for optional configuration parameters.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("telegram.send_timeout", 10*time.Second)
	viper.SetDefault("telegram.send_rate", 25.0)
	viper.SetDefault("telegram.send_burst", 5)

	viper.SetDefault("database.path", "taskbot.db")

	viper.SetDefault("scheduler.tick_interval", 30*time.Second)
	viper.SetDefault("scheduler.catch_up_window", 6*time.Hour)
	viper.SetDefault("scheduler.default_timezone", "UTC")
	viper.SetDefault("scheduler.default_digest_time", "09:00")

	viper.SetDefault("backup.dir", "backups")
	viper.SetDefault("backup.interval", 24*time.Hour)
	viper.SetDefault("backup.retention", 14*24*time.Hour)
	viper.SetDefault("backup.ledger_retention", 90*24*time.Hour)

	viper.SetDefault("health.addr", ":8080")
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
		return fmt.Errorf("failed to register hhmm validator: %v", err)
	}
	if err := v.Struct(c); err != nil {
		return err
	}
	return nil
}

// validateHHMM accepts 24-hour HH:MM wall-clock values.
func validateHHMM(fl validator.FieldLevel) bool {
	_, err := timezone.ParseWallClock(fl.Field().String())
	return err == nil
}

// UserAllowed reports whether the Telegram user may use the bot. An
// empty allowlist admits everyone.
func (c *TelegramConfig) UserAllowed(telegramID int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
