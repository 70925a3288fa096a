package commands

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
)

// Auditor persists executed commands.
type Auditor interface {
	AppendCommandToHistory(guildID string, record storage.CommandHistoryRecord) error
}

// WithGuildOnly rejects commands sent outside a server.
func WithGuildOnly() cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			c, err := From(inv)
			if err != nil {
				return err
			}
			if c.GuildID == "" {
				return ErrGuildOnly
			}
			return next.Run(ctx, inv)
		})
	}
}

// WithRateLimit rejects users who exceed their command budget.
func WithRateLimit(l *UserLimiter) cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			c, err := From(inv)
			if err != nil {
				return err
			}
			if l != nil && !l.Allow(c.UserID) {
				return ErrRateLimited
			}
			return next.Run(ctx, inv)
		})
	}
}

// WithCommandLogger runs the command, then logs it and appends it to the
// guild's audit trail.
func WithCommandLogger(audit Auditor, log zerolog.Logger) cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := next.Run(ctx, inv)

			c, cerr := From(inv)
			if cerr != nil {
				return err
			}
			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("command", next.Name()).
				Str("guild", c.GuildID).
				Str("user", c.Username).
				Str("args", inv.Rest()).
				Dur("took", time.Since(start)).
				Msg("command executed")

			if audit != nil && c.GuildID != "" {
				rec := storage.CommandHistoryRecord{
					ChannelID:   c.ChannelID,
					ChannelName: c.ChannelName,
					GuildName:   c.GuildName,
					UserID:      c.UserID,
					Username:    c.Username,
					Command:     next.Name(),
					Param:       inv.Rest(),
					Datetime:    start,
				}
				if aerr := audit.AppendCommandToHistory(c.GuildID, rec); aerr != nil {
					log.Warn().Err(aerr).Str("command", next.Name()).Msg("failed to record command")
				}
			}
			return err
		})
	}
}

// WithRecover turns a panic into an error so one bad command cannot take
// the bot down.
func WithRecover(log zerolog.Logger) cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("command", next.Name()).
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("command panicked")
					err = errors.Newf("command %s panicked: %v", next.Name(), r)
				}
			}()
			return next.Run(ctx, inv)
		})
	}
}
