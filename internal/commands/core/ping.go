package core

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
)

type PingCommand struct {
	latency func() time.Duration
}

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Check bot latency" }
func (c *PingCommand) Aliases() []string   { return nil }
func (c *PingCommand) Category() string    { return config.CategoryInfo }

func (c *PingCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := commands.From(inv)
	if err != nil {
		return err
	}
	var latency time.Duration
	if c.latency != nil {
		latency = c.latency()
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       "Pong!",
		Description: fmt.Sprintf("Latency: %dms", latency.Milliseconds()),
	})
}
