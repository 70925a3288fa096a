package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/pkg/cmd"
)

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		b.leaveIfBlacklisted(s, g.ID, g.Name)
	}
	b.log.Info().Int("guilds", len(r.Guilds)).Msg("gateway ready")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil {
		return
	}
	if !b.leaveIfBlacklisted(s, g.ID, g.Name) {
		b.log.Debug().Str("guild", g.ID).Str("name", g.Name).Msg("guild available")
	}
}

// onGuildDelete fires for outages too; only a real removal drops the
// guild's records.
func (b *Bot) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	b.log.Info().Str("guild", g.ID).Msg("removed from guild")
	if b.sessions != nil {
		if err := b.sessions.Remove(b.ctx, g.ID); err != nil {
			b.log.Warn().Err(err).Str("guild", g.ID).Msg("failed to close session")
		}
	}
	b.forgetGuild(g.ID)
}

func (b *Bot) forgetGuild(guildID string) {
	if b.storage == nil {
		return
	}
	if err := b.storage.ForgetGuild(guildID); err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("failed to drop guild records")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID, name string) bool {
	if !b.cfg.IsBlacklisted(guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Str("name", name).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	b.forgetGuild(guildID)
	return true
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || b.commands == nil {
		return
	}
	inv, ok := cmd.Parse(b.cfg.Prefix, m.Content)
	if !ok {
		return
	}
	c := b.commands.Get(inv.Name)
	if c == nil {
		return
	}

	cc := b.commandContext(s, m)
	inv.Data = cc

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := c.Run(ctx, inv); err != nil {
		if player.KindOf(err) == player.KindInternal {
			b.log.Error().Err(err).Str("command", inv.Name).Str("guild", m.GuildID).Msg("command failed")
		}
		if rerr := commands.ReplyError(cc, err); rerr != nil {
			b.log.Warn().Err(rerr).Str("channel", m.ChannelID).Msg("failed to send error reply")
		}
	}
}

func (b *Bot) commandContext(s *discordgo.Session, m *discordgo.MessageCreate) *commands.Context {
	cc := &commands.Context{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Send: func(e *discordgo.MessageEmbed) error {
			_, err := s.ChannelMessageSendEmbed(m.ChannelID, e)
			return err
		},
	}
	if g, err := s.State.Guild(m.GuildID); err == nil {
		cc.GuildName = g.Name
	}
	if ch, err := s.State.Channel(m.ChannelID); err == nil {
		cc.ChannelName = ch.Name
	}
	if m.GuildID != "" {
		cc.Join = joinFunc(s.State, b.joiner, b.cfg.ConnectionTimeout, m.GuildID, m.Author.ID, m.ChannelID)
	}
	return cc
}
