package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
)

type HelpCommand struct {
	registry *cmd.Registry
	prefix   string
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Get a list of available commands" }
func (c *HelpCommand) Aliases() []string   { return []string{"h", "commands"} }
func (c *HelpCommand) Category() string    { return config.CategoryInfo }
func (c *HelpCommand) Usage() string       { return "[command]" }

func (c *HelpCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := commands.From(inv)
	if err != nil {
		return err
	}
	if name := inv.Arg(0); name != "" {
		target := c.registry.Get(strings.TrimPrefix(name, c.prefix))
		if target == nil {
			return commands.Info(cc, fmt.Sprintf("❌ Unknown command `%s`", name))
		}
		return cc.Reply(&discordgo.MessageEmbed{
			Title:       c.prefix + target.Name(),
			Description: c.describe(target),
		})
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       "🎵 Music Bot Help",
		Description: c.buildByCategory(),
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Use %shelp <command> for details", c.prefix)},
	})
}

func (c *HelpCommand) buildByCategory() string {
	cats, groups := c.registry.ByCategory()
	slices.SortStableFunc(cats, func(a, b string) int {
		return config.CategoryWeight(a) - config.CategoryWeight(b)
	})

	var sb strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&sb, "**%s**\n", cat)
		for _, command := range groups[cat] {
			fmt.Fprintf(&sb, "`%s%s`", c.prefix, command.Name())
			if u := usage(command); u != "" {
				fmt.Fprintf(&sb, " `%s`", u)
			}
			fmt.Fprintf(&sb, " - %s\n", command.Description())
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func (c *HelpCommand) describe(command cmd.Command) string {
	var sb strings.Builder
	sb.WriteString(command.Description())
	if u := usage(command); u != "" {
		fmt.Fprintf(&sb, "\n\n**Usage:** `%s%s %s`", c.prefix, command.Name(), u)
	}
	if a, ok := cmd.Root(command).(cmd.Aliased); ok && len(a.Aliases()) > 0 {
		names := make([]string, 0, len(a.Aliases()))
		for _, alias := range a.Aliases() {
			names = append(names, "`"+c.prefix+alias+"`")
		}
		fmt.Fprintf(&sb, "\n**Aliases:** %s", strings.Join(names, ", "))
	}
	return sb.String()
}

func usage(command cmd.Command) string {
	if u, ok := cmd.Root(command).(cmd.Usage); ok {
		return u.Usage()
	}
	return ""
}
