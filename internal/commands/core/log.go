package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/util"
)

const maxContentLength = 1900

type LogCommand struct {
	history History
}

func (c *LogCommand) Name() string        { return "history" }
func (c *LogCommand) Description() string { return "Review recent commands in this server" }
func (c *LogCommand) Aliases() []string   { return []string{"log"} }
func (c *LogCommand) Category() string    { return config.CategoryInfo }

func (c *LogCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := commands.From(inv)
	if err != nil {
		return err
	}
	records, err := c.history.FetchCommandHistory(cc.GuildID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return commands.Info(cc, "No command logs found.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s  %-15s  %s\n", "# Datetime", "# Username", "# Command")
	// latest first
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		line := fmt.Sprintf("%-16s  %-15s  %s %s\n",
			util.FormatDateTpl(r.Datetime, "YYYY-MM-DD hh:mm"),
			util.Truncate(r.Username, 15),
			r.Command,
			r.Param,
		)
		if sb.Len()+len(line) > maxContentLength {
			break
		}
		sb.WriteString(line)
	}
	return commands.Info(cc, "```\n"+sb.String()+"```")
}
