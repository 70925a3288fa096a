package lavalink

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

const voiceUpdateTimeout = 10 * time.Second

// Join asks Discord to move the bot into channelID and hands the resulting
// voice credentials to the node. It returns once the node has them.
func (c *Client) Join(ctx context.Context, guildID, channelID string) error {
	if c.voiceConn == nil {
		return errors.New("no voice gateway configured")
	}
	if c.SessionID() == "" {
		return ErrNotConnected
	}

	ready := make(chan struct{})
	c.mu.Lock()
	if old, ok := c.waiters[guildID]; ok {
		close(old)
	}
	c.waiters[guildID] = ready
	c.voice[guildID] = &VoiceState{}
	c.mu.Unlock()

	if err := c.voiceConn.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		c.dropWaiter(guildID, ready)
		return errors.Wrap(err, "send voice state")
	}

	select {
	case <-ctx.Done():
		c.dropWaiter(guildID, ready)
		return errors.Mark(errors.Wrapf(ctx.Err(), "guild %s", guildID), ErrVoiceTimeout)
	case <-ready:
	}

	c.mu.RLock()
	var v VoiceState
	if cur := c.voice[guildID]; cur != nil {
		v = *cur
	}
	c.mu.RUnlock()
	if !v.complete() {
		return errors.Newf("voice join for guild %s was cancelled", guildID)
	}

	if err := c.updatePlayer(ctx, guildID, playerUpdate{Voice: &v}); err != nil {
		return errors.Wrap(err, "send voice to node")
	}
	c.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice")
	return nil
}

func (c *Client) dropWaiter(guildID string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiters[guildID] == ch {
		delete(c.waiters, guildID)
	}
}

// OnVoiceStateUpdate records the bot's voice session id. Register it with
// discordgo's AddHandler.
func (c *Client) OnVoiceStateUpdate(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e == nil || e.VoiceState == nil || e.UserID != c.userID {
		return
	}
	if e.ChannelID == "" {
		c.log.Debug().Str("guild", e.GuildID).Msg("bot left voice")
		return
	}
	c.updateVoice(e.GuildID, func(v *VoiceState) { v.SessionID = e.SessionID })
}

// OnVoiceServerUpdate records the voice server token and endpoint.
func (c *Client) OnVoiceServerUpdate(_ *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if e == nil {
		return
	}
	c.updateVoice(e.GuildID, func(v *VoiceState) {
		v.Token = e.Token
		v.Endpoint = e.Endpoint
	})
}

// updateVoice applies fn and wakes a pending Join once the state is
// complete. Server moves after the join are forwarded to the node directly.
func (c *Client) updateVoice(guildID string, fn func(*VoiceState)) {
	c.mu.Lock()
	v, ok := c.voice[guildID]
	if !ok {
		c.mu.Unlock()
		return
	}
	fn(v)
	snapshot := *v
	ch, waiting := c.waiters[guildID]
	if waiting && snapshot.complete() {
		close(ch)
		delete(c.waiters, guildID)
	}
	c.mu.Unlock()

	if !waiting && snapshot.complete() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), voiceUpdateTimeout)
			defer cancel()
			if err := c.updatePlayer(ctx, guildID, playerUpdate{Voice: &snapshot}); err != nil {
				c.log.Warn().Err(err).Str("guild", guildID).Msg("failed to forward voice update")
			}
		}()
	}
}
