// Package discord connects the music core to the Discord gateway: prefix
// commands in, embeds and voice joins out.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/commands/core"
	"github.com/keshon/domme-music/internal/commands/music"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/music/lavalink"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/source_resolver"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/jobmgr"
)

const (
	intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	commandTimeout  = time.Minute
	shutdownTimeout = 10 * time.Second
)

// Bot is a Discord music bot.
type Bot struct {
	cfg     *config.Config
	storage *storage.Storage
	log     zerolog.Logger

	dg       *discordgo.Session
	node     *lavalink.Client
	sessions *player.Registry
	jobs     *jobmgr.Manager
	commands *cmd.Registry
	joiner   VoiceJoiner
	ctx      context.Context
}

func New(cfg *config.Config, store *storage.Storage, log zerolog.Logger) *Bot {
	return &Bot{
		cfg:     cfg,
		storage: store,
		log:     log.With().Str("component", "discord").Logger(),
	}
}

// Run connects to Discord and the audio node and serves commands until ctx
// is done or the node gives up reconnecting.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return errors.Wrap(err, "create discord session")
	}
	dg.Identify.Intents = intents
	b.dg = dg

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onGuildDelete)

	if err := dg.Open(); err != nil {
		return errors.Wrap(err, "open discord session")
	}
	defer dg.Close()

	me, err := dg.User("@me")
	if err != nil {
		return errors.Wrap(err, "fetch bot user")
	}

	b.wire(me.ID)
	dg.AddHandler(b.node.OnVoiceStateUpdate)
	dg.AddHandler(b.node.OnVoiceServerUpdate)
	dg.AddHandler(b.onMessageCreate)

	// the node job outlives ctx so sessions can still be closed on shutdown
	nodeErr := make(chan error, 1)
	if err := b.jobs.StartAsync("node:"+b.cfg.LavalinkName, func(ctx context.Context) error {
		err := b.node.Run(ctx)
		nodeErr <- err
		return err
	}); err != nil {
		b.shutdown()
		return errors.Wrap(err, "start audio node")
	}

	b.log.Info().Str("user", me.Username).Str("prefix", b.cfg.Prefix).Msg("discord bot is running")

	select {
	case <-ctx.Done():
		err = nil
	case err = <-nodeErr:
		if err != nil {
			err = errors.Wrap(err, "audio node")
		}
	}
	b.shutdown()
	return err
}

// wire builds the music stack once the bot's user ID is known.
func (b *Bot) wire(userID string) {
	cfg := b.cfg

	b.node = lavalink.New(lavalink.Config{
		Node: lavalink.NodeConfig{
			Name:     cfg.LavalinkName,
			Host:     cfg.LavalinkHost,
			Port:     cfg.LavalinkPort,
			Password: cfg.LavalinkPassword,
			Secure:   cfg.LavalinkSecure,
		},
		UserID:            userID,
		DefaultVolume:     cfg.DefaultVolume,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		Voice:             b.dg,
		Logger:            b.log,
	})
	b.joiner = b.node

	resolver := source_resolver.New(b.node, source_resolver.Config{
		DefaultSource: cfg.SearchSource,
		CacheEnabled:  cfg.CacheEnabled,
		CacheSize:     cfg.CacheSize,
		CacheTTL:      cfg.CacheTTL,
		Logger:        b.log,
	})

	b.jobs = jobmgr.NewManager(func(status string) {
		b.log.Debug().Str("job", status).Msg("job status")
	})
	b.sessions = player.NewRegistry(player.RegistryConfig{
		Backend:       b.node,
		Resolver:      resolver,
		Notifier:      NewNotifier(b.dg),
		MaxQueueSize:  cfg.MaxQueueSize,
		DefaultVolume: cfg.DefaultVolume,
		Timeout:       cfg.BackendTimeout,
		IdleTimeout:   cfg.IdleTimeout,
		Jobs:          b.jobs,
		Logger:        b.log,
	})
	b.node.SetHandler(b.sessions)

	b.commands = b.buildCommands(resolver)
}

func (b *Bot) buildCommands(search music.Searcher) *cmd.Registry {
	var limiter *commands.UserLimiter
	if b.cfg.RateLimitEnabled {
		limiter = commands.NewUserLimiter(b.cfg.RateLimitPerUser, b.cfg.RateLimitCooldown)
	}
	// applied inside out: recover wraps everything
	mws := []cmd.Middleware{
		commands.WithRateLimit(limiter),
		commands.WithCommandLogger(b.storage, b.log),
		commands.WithGuildOnly(),
		commands.WithRecover(b.log),
	}

	reg := cmd.NewRegistry()
	all := core.Commands(reg, core.Deps{
		Prefix:   b.cfg.Prefix,
		Latency:  b.dg.HeartbeatLatency,
		History:  b.storage,
		Jobs:     b.jobs,
		Store:    b.storage,
		Sessions: b.sessions.Len,
	})
	all = append(all, music.Commands(&music.Service{
		Sessions: b.sessions,
		Search:   search,
		Prefix:   b.cfg.Prefix,
	})...)
	for _, c := range all {
		reg.MustRegister(cmd.Apply(c, mws...))
	}
	return reg
}

func (b *Bot) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	b.log.Info().Msg("shutdown signal received, cleaning up")
	if b.sessions != nil {
		b.sessions.CloseAll(ctx)
	}
	if b.jobs != nil {
		b.jobs.StopAll()
	}
	if b.node != nil {
		if err := b.node.Close(); err != nil {
			b.log.Warn().Err(err).Msg("failed to close audio node connection")
		}
	}
}
