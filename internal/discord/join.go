package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/player"
)

const voicePermissions = discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak

// VoiceJoiner moves the bot into a voice channel and waits until audio can
// flow. *lavalink.Client satisfies it.
type VoiceJoiner interface {
	Join(ctx context.Context, guildID, channelID string) error
}

// findUserVoiceChannel returns the voice channel userID sits in.
func findUserVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", player.ErrUserNotInVoice
	}
	return vs.ChannelID, nil
}

// canSpeak reports whether perms allow joining and speaking. Unknown
// permissions are not treated as missing.
func canSpeak(perms int64, err error) bool {
	if err != nil {
		return true
	}
	return perms&discordgo.PermissionAdministrator != 0 || perms&voicePermissions == voicePermissions
}

// joinFunc connects to the voice channel of userID. Replies about the
// session go to homeChannelID.
func joinFunc(state *discordgo.State, voice VoiceJoiner, timeout time.Duration, guildID, userID, homeChannelID string) player.JoinFunc {
	return func(ctx context.Context) (player.Session, error) {
		channelID, err := findUserVoiceChannel(state, guildID, userID)
		if err != nil {
			return player.Session{}, err
		}
		if state.User != nil && !canSpeak(state.UserChannelPermissions(state.User.ID, channelID)) {
			return player.Session{}, errors.WithHint(
				errors.Wrapf(player.ErrConnectFailed, "missing voice permissions in %s", channelID),
				"I need permission to connect and speak in your voice channel.",
			)
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := voice.Join(ctx, guildID, channelID); err != nil {
			return player.Session{}, errors.WithHint(
				errors.Mark(errors.Wrapf(err, "join %s", channelID), player.ErrConnectFailed),
				"Could not connect to your voice channel. Try again in a moment.",
			)
		}
		return player.Session{GuildID: guildID, VoiceChannelID: channelID, HomeChannelID: homeChannelID}, nil
	}
}
