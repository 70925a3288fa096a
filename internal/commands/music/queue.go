package music

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/util"
)

type QueueCommand struct{ svc *Service }

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "List upcoming tracks" }
func (c *QueueCommand) Aliases() []string   { return []string{"q"} }
func (c *QueueCommand) Category() string    { return config.CategoryQueue }
func (c *QueueCommand) Usage() string       { return "[page]" }

func (c *QueueCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	page := 1
	if len(inv.Args) > 0 {
		n, err := strconv.Atoi(inv.Arg(0))
		if err != nil || len(inv.Args) > 1 {
			return c.svc.usage(c.Name(), c.Usage())
		}
		page = n
	}
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	pg, err := p.ListQueue(page, queuePageSize)
	if err != nil {
		return err
	}
	st, err := p.Status()
	if err != nil {
		return err
	}

	var b []byte
	if st.Track != nil {
		b = fmt.Appendf(b, "**Now:** %s `%s`\n\n", trackLink(*st.Track), trackDuration(*st.Track))
	}
	if pg.Total == 0 {
		b = append(b, "The queue is empty."...)
	}
	for i, t := range pg.Tracks {
		b = fmt.Appendf(b, "`%d.` %s `%s`\n", pg.Start+i, trackLink(t), trackDuration(t))
	}

	return cc.Reply(&discordgo.MessageEmbed{
		Title:       "📜 Queue",
		Description: string(b),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d • %s • Loop: %s", pg.Number, pg.Pages, plural(pg.Total, "track"), st.Loop),
		},
	})
}

type RemoveCommand struct{ svc *Service }

func (c *RemoveCommand) Name() string        { return "remove" }
func (c *RemoveCommand) Description() string { return "Remove a track from the queue" }
func (c *RemoveCommand) Aliases() []string   { return []string{"rm"} }
func (c *RemoveCommand) Category() string    { return config.CategoryQueue }
func (c *RemoveCommand) Usage() string       { return "<position>" }

func (c *RemoveCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	pos, err := strconv.Atoi(inv.Arg(0))
	if err != nil || len(inv.Args) != 1 {
		return c.svc.usage(c.Name(), c.Usage())
	}
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	t, err := p.Remove(pos)
	if err != nil {
		return err
	}
	return commands.Info(cc, fmt.Sprintf("🗑️ Removed %s from position %d", trackLink(t), pos))
}

type ClearCommand struct{ svc *Service }

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Remove every queued track" }
func (c *ClearCommand) Aliases() []string   { return nil }
func (c *ClearCommand) Category() string    { return config.CategoryQueue }

func (c *ClearCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	n, err := p.Clear()
	if err != nil {
		return err
	}
	return commands.Info(cc, "🧹 Cleared "+plural(n, "track"))
}

type ShuffleCommand struct{ svc *Service }

func (c *ShuffleCommand) Name() string        { return "shuffle" }
func (c *ShuffleCommand) Description() string { return "Shuffle the queue" }
func (c *ShuffleCommand) Aliases() []string   { return nil }
func (c *ShuffleCommand) Category() string    { return config.CategoryQueue }

func (c *ShuffleCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	n, err := p.Shuffle()
	if err != nil {
		return err
	}
	return commands.Info(cc, "🔀 Shuffled "+plural(n, "track"))
}

type LoopCommand struct{ svc *Service }

func (c *LoopCommand) Name() string        { return "loop" }
func (c *LoopCommand) Description() string { return "Set the loop mode" }
func (c *LoopCommand) Aliases() []string   { return []string{"repeat"} }
func (c *LoopCommand) Category() string    { return config.CategoryQueue }
func (c *LoopCommand) Usage() string       { return "[track|queue|off]" }

func (c *LoopCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mode := queue.LoopCurrent
	if len(inv.Args) > 0 {
		m, err := queue.ParseLoopMode(inv.Arg(0))
		if err != nil {
			return err
		}
		mode = m
	}
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	if err := p.SetLoopMode(mode); err != nil {
		return err
	}

	switch mode {
	case queue.LoopCurrent:
		return commands.Info(cc, "🔂 Looping the current track")
	case queue.LoopAll:
		return commands.Info(cc, "🔁 Looping the queue")
	default:
		return commands.Info(cc, "➡️ Loop disabled")
	}
}

type RecentCommand struct{ svc *Service }

func (c *RecentCommand) Name() string        { return "recent" }
func (c *RecentCommand) Description() string { return "Show recently played tracks" }
func (c *RecentCommand) Aliases() []string   { return []string{"played"} }
func (c *RecentCommand) Category() string    { return config.CategoryQueue }

func (c *RecentCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	hist := p.History()
	if len(hist) == 0 {
		return commands.Info(cc, "Nothing has been played yet.")
	}

	var b []byte
	for i := len(hist) - 1; i >= 0 && len(hist)-i <= queuePageSize; i-- {
		b = fmt.Appendf(b, "`%d.` %s\n", len(hist)-i, util.Truncate(hist[i].DisplayTitle(), titleLimit))
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       "🕘 Recently Played",
		Description: string(b),
	})
}
