package music

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/pkg/cmd"
)

type PlayCommand struct{ svc *Service }

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Play a track or add it to the queue" }
func (c *PlayCommand) Aliases() []string   { return []string{"p"} }
func (c *PlayCommand) Category() string    { return config.CategoryMusic }
func (c *PlayCommand) Usage() string       { return "<title or URL>" }

func (c *PlayCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return runPlay(ctx, c.svc, inv, false, c.Name(), c.Usage())
}

type PlayTopCommand struct{ svc *Service }

func (c *PlayTopCommand) Name() string        { return "playtop" }
func (c *PlayTopCommand) Description() string { return "Put a track at the front of the queue" }
func (c *PlayTopCommand) Aliases() []string   { return []string{"pt"} }
func (c *PlayTopCommand) Category() string    { return config.CategoryMusic }
func (c *PlayTopCommand) Usage() string       { return "<title or URL>" }

func (c *PlayTopCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return runPlay(ctx, c.svc, inv, true, c.Name(), c.Usage())
}

func runPlay(ctx context.Context, svc *Service, inv *cmd.Invocation, front bool, name, usage string) error {
	c, err := commands.From(inv)
	if err != nil {
		return err
	}
	query := inv.Rest()
	if query == "" {
		return svc.usage(name, usage)
	}

	p, err := svc.join(ctx, c)
	if err != nil {
		return err
	}

	var res player.PlayResult
	if front {
		res, err = p.PlayNext(ctx, query)
	} else {
		res, err = p.Play(ctx, query)
	}
	if err != nil {
		return err
	}

	if res.Started {
		return c.Reply(&discordgo.MessageEmbed{
			Title:       "🎶 Now Playing",
			Description: fmt.Sprintf("%s `%s`", trackLink(res.Track), trackDuration(res.Track)),
		})
	}
	return c.Reply(&discordgo.MessageEmbed{
		Title:       "➕ Added to Queue",
		Description: fmt.Sprintf("%s `%s`", trackLink(res.Track), trackDuration(res.Track)),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Position in queue: %d", res.Position)},
	})
}

type SearchCommand struct{ svc *Service }

func (c *SearchCommand) Name() string        { return "search" }
func (c *SearchCommand) Description() string { return "Search for tracks without playing them" }
func (c *SearchCommand) Aliases() []string   { return nil }
func (c *SearchCommand) Category() string    { return config.CategoryMusic }
func (c *SearchCommand) Usage() string       { return "[youtube|soundcloud] <query>" }

func (c *SearchCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := commands.From(inv)
	if err != nil {
		return err
	}

	source, args := "", inv.Args
	if len(args) > 1 {
		switch args[0] {
		case sources.SourceYouTube, sources.SourceSoundCloud:
			source, args = args[0], args[1:]
		}
	}
	query := strings.Join(args, " ")
	if query == "" {
		return c.svc.usage(c.Name(), c.Usage())
	}

	tracks, err := c.svc.Search.ResolveFrom(ctx, query, source)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return commands.Info(cc, fmt.Sprintf("❌ No tracks found for `%s`", query))
	}

	var b []byte
	for i, t := range tracks[:min(len(tracks), searchResults)] {
		b = fmt.Appendf(b, "`%d.` %s `%s`\n", i+1, trackLink(t), trackDuration(t))
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🔍 Search Results for '%s'", query),
		Description: string(b),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Use %splay <track name> to play", c.svc.Prefix)},
	})
}
