package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/util"
)

const maxListedJobs = 15

type StatsCommand struct {
	jobs     Jobs
	store    Store
	sessions func() int
	now      func() time.Time
}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Show sessions, background jobs and storage" }
func (c *StatsCommand) Aliases() []string   { return []string{"jobs"} }
func (c *StatsCommand) Category() string    { return config.CategoryInfo }

func (c *StatsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := commands.From(inv)
	if err != nil {
		return err
	}

	sessions := "n/a"
	if c.sessions != nil {
		sessions = fmt.Sprint(c.sessions())
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title: "📊 Bot Stats",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Voice sessions", Value: sessions, Inline: true},
			{Name: "Storage", Value: c.storeLine(), Inline: true},
			{Name: "Jobs", Value: c.jobLines()},
		},
	})
}

func (c *StatsCommand) storeLine() string {
	if c.store == nil {
		return "n/a"
	}
	stats := c.store.Stats()
	keys, _ := stats["keys"].(int)
	size, _ := stats["memory_size"].(int64)
	return fmt.Sprintf("%d guild records, %.1f KB", keys, float64(size)/1024)
}

func (c *StatsCommand) jobLines() string {
	if c.jobs == nil {
		return "n/a"
	}
	names := c.jobs.List()
	if len(names) == 0 {
		return c.jobs.Status()
	}

	now := c.now()
	var b strings.Builder
	for i, name := range names {
		if i == maxListedJobs {
			fmt.Fprintf(&b, "…and %d more", len(names)-i)
			break
		}
		due, ok := c.jobs.Due(name)
		switch {
		case !ok:
			continue
		case due.After(now):
			fmt.Fprintf(&b, "`%s` in %s\n", name, util.FormatDuration(due.Sub(now)))
		default:
			fmt.Fprintf(&b, "`%s` running\n", name)
		}
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	return c.jobs.Status()
}
