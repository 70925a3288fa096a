package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/pkg/util"
)

// EmbedSender posts an embed to a channel. *discordgo.Session satisfies it.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier turns player notifications into channel messages.
type Notifier struct {
	send EmbedSender
}

func NewNotifier(send EmbedSender) *Notifier {
	return &Notifier{send: send}
}

func (n *Notifier) Notify(ctx context.Context, channelID string, note player.Notification) error {
	e := notificationEmbed(note)
	if e == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.send.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx))
	return err
}

func notificationEmbed(note player.Notification) *discordgo.MessageEmbed {
	switch note.Kind {
	case player.NotifyNowPlaying:
		t := note.Track
		desc := "**" + util.Truncate(t.DisplayTitle(), 80) + "**"
		if t.URI != "" {
			desc = "[" + util.Truncate(t.DisplayTitle(), 80) + "](" + t.URI + ")"
		}
		duration := "LIVE"
		if !t.IsStream {
			duration = util.FormatDuration(t.Duration)
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Duration", Value: duration, Inline: true}}
		if t.Author != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Author", Value: t.Author, Inline: true})
		}
		if note.QueueSize > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Up next", Value: fmt.Sprintf("%d in queue", note.QueueSize), Inline: true})
		}
		return &discordgo.MessageEmbed{
			Title:       "🎶 Now Playing",
			Description: desc,
			Fields:      fields,
			Color:       commands.EmbedColor,
		}
	case player.NotifyQueueFinished:
		return &discordgo.MessageEmbed{Description: "✅ Queue finished.", Color: commands.EmbedColor}
	case player.NotifyTrackFailed:
		return &discordgo.MessageEmbed{
			Description: fmt.Sprintf("❌ Could not play **%s**. %s", util.Truncate(note.Track.DisplayTitle(), 80), commands.Describe(note.Err)),
			Color:       commands.ErrorColor,
		}
	case player.NotifyIdleDisconnect:
		return &discordgo.MessageEmbed{Description: "👋 Left the voice channel after inactivity.", Color: commands.EmbedColor}
	default:
		return nil
	}
}
