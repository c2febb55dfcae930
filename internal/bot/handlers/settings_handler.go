package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/eskovalev/taskbot/internal/timezone"
)

// NewTimezoneHandler returns a handler for /timezone <IANA zone>. The
// zone is validated here, at write time; the scheduler trusts it.
func NewTimezoneHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "timezone"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "timezone")
		if args == "" {
			reply(ctx, b, log, chat,
				fmt.Sprintf("Your timezone is %s. Change it with /timezone <IANA zone>, e.g. /timezone Europe/Berlin.", sess.User.Timezone))
			return
		}

		conv, err := deps.Resolver.Resolve(args)
		if errors.Is(err, timezone.ErrInvalidZone) {
			reply(ctx, b, log, chat,
				fmt.Sprintf("%q is not a valid IANA zone name. Try something like Europe/Berlin or America/New_York.", args))
			return
		}
		if err != nil {
			log.ErrorContext(ctx, "Failed to resolve timezone", "error", err)
			reply(ctx, b, log, chat, "❌ Could not update the timezone.")
			return
		}

		if err := deps.Store.UpdateUserTimezone(ctx, sess.User.ID, args); err != nil {
			log.ErrorContext(ctx, "Failed to store timezone", "error", err)
			reply(ctx, b, log, chat, "❌ Could not update the timezone.")
			return
		}

		reply(ctx, b, log, chat,
			fmt.Sprintf("🌍 Timezone set to %s. Your local time is %s.", args, conv.FormatLocal(timeNow())))
	}
	return h.Handle
}

// NewDigestHandler returns a handler for /digest on|off [HH:MM].
func NewDigestHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "digest"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, args string) {
		log := deps.Logger.With("handler", "digest")
		fields := strings.Fields(args)
		if len(fields) == 0 {
			state := "off"
			if sess.User.DigestEnabled {
				state = "on"
			}
			reply(ctx, b, log, chat,
				fmt.Sprintf("The daily digest is %s (at %s local). Use /digest on [HH:MM] or /digest off.", state, sess.User.DigestTime))
			return
		}

		var enabled bool
		switch strings.ToLower(fields[0]) {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			reply(ctx, b, log, chat, "Usage: /digest on [HH:MM] or /digest off")
			return
		}

		digestTime := sess.User.DigestTime
		if len(fields) > 1 {
			clock, err := timezone.ParseWallClock(fields[1])
			if err != nil {
				reply(ctx, b, log, chat, fmt.Sprintf("%q is not a valid time. Use 24-hour HH:MM.", fields[1]))
				return
			}
			digestTime = clock.String()
		}

		if err := deps.Store.UpdateUserDigest(ctx, sess.User.ID, enabled, digestTime); err != nil {
			log.ErrorContext(ctx, "Failed to store digest settings", "error", err)
			reply(ctx, b, log, chat, "❌ Could not update digest settings.")
			return
		}

		if enabled {
			reply(ctx, b, log, chat, fmt.Sprintf("📬 Daily digest on, delivered around %s local time.", digestTime))
		} else {
			reply(ctx, b, log, chat, "📭 Daily digest off.")
		}
	}
	return h.Handle
}

// NewSettingsHandler returns a handler for /settings.
func NewSettingsHandler(deps HandlerDeps) bot.HandlerFunc {
	h := taskCommand{deps: deps, name: "settings"}
	h.run = func(ctx context.Context, b *bot.Bot, sess *session, chat int64, _ string) {
		log := deps.Logger.With("handler", "settings")

		digest := "off"
		if sess.User.DigestEnabled {
			digest = "on, at " + sess.User.DigestTime
		}
		text := fmt.Sprintf(
			"⚙️ Settings\nTimezone: %s (local time %s)\nDaily digest: %s",
			sess.User.Timezone, sess.Conv.FormatLocal(timeNow()), digest)
		reply(ctx, b, log, chat, text)
	}
	return h.Handle
}
