package commands

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/pkg/cmd"
)

var (
	ErrNoContext   = errors.New("invocation carries no command context")
	ErrGuildOnly   = errors.New("this command only works in a server")
	ErrRateLimited = errors.New("you are sending commands too fast")
)

// Context is what the Discord adapter hands every command through
// cmd.Invocation.Data.
type Context struct {
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelName string
	UserID      string
	Username    string

	// Join connects the bot to the caller's voice channel.
	Join player.JoinFunc
	// Send posts an embed to the channel the command came from.
	Send func(*discordgo.MessageEmbed) error
}

// From extracts the Context of inv.
func From(inv *cmd.Invocation) (*Context, error) {
	if inv == nil {
		return nil, ErrNoContext
	}
	c, ok := inv.Data.(*Context)
	if !ok || c == nil {
		return nil, ErrNoContext
	}
	return c, nil
}

// Reply sends e, filling in the default color.
func (c *Context) Reply(e *discordgo.MessageEmbed) error {
	if e.Color == 0 {
		e.Color = EmbedColor
	}
	if c.Send == nil {
		return errors.New("no reply channel")
	}
	return c.Send(e)
}
