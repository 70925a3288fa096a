package music

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/util"
)

type SkipCommand struct{ svc *Service }

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Skip the current track" }
func (c *SkipCommand) Aliases() []string   { return []string{"s", "next"} }
func (c *SkipCommand) Category() string    { return config.CategoryPlayback }

func (c *SkipCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	t, err := p.Skip(ctx)
	if err != nil {
		return err
	}
	return commands.Info(cc, "⏭️ Skipped "+trackLink(t))
}

type PauseCommand struct{ svc *Service }

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Description() string { return "Pause playback" }
func (c *PauseCommand) Aliases() []string   { return nil }
func (c *PauseCommand) Category() string    { return config.CategoryPlayback }

func (c *PauseCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	if err := p.Pause(ctx); err != nil {
		return err
	}
	return commands.Info(cc, "⏸️ Paused")
}

type ResumeCommand struct{ svc *Service }

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Description() string { return "Resume paused playback" }
func (c *ResumeCommand) Aliases() []string   { return []string{"r", "unpause"} }
func (c *ResumeCommand) Category() string    { return config.CategoryPlayback }

func (c *ResumeCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	if err := p.Resume(ctx); err != nil {
		return err
	}
	return commands.Info(cc, "▶️ Resumed")
}

type StopCommand struct{ svc *Service }

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop playback and clear the queue" }
func (c *StopCommand) Aliases() []string   { return nil }
func (c *StopCommand) Category() string    { return config.CategoryPlayback }

func (c *StopCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	if err := p.Stop(ctx); err != nil {
		return err
	}
	return commands.Info(cc, "⏹️ Stopped playback and cleared the queue")
}

type LeaveCommand struct{ svc *Service }

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "Leave the voice channel" }
func (c *LeaveCommand) Aliases() []string   { return []string{"disconnect", "dc"} }
func (c *LeaveCommand) Category() string    { return config.CategoryPlayback }

func (c *LeaveCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := commands.From(inv)
	if err != nil {
		return err
	}
	if _, err := c.svc.Sessions.Lookup(cc.GuildID); err != nil {
		return err
	}
	if err := c.svc.Sessions.Remove(ctx, cc.GuildID); err != nil {
		return err
	}
	return commands.Info(cc, "👋 Left the voice channel")
}

type SeekCommand struct{ svc *Service }

func (c *SeekCommand) Name() string        { return "seek" }
func (c *SeekCommand) Description() string { return "Jump to a position in the current track" }
func (c *SeekCommand) Aliases() []string   { return nil }
func (c *SeekCommand) Category() string    { return config.CategoryPlayback }
func (c *SeekCommand) Usage() string       { return "<seconds or m:ss>" }

func (c *SeekCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	offset, ok := parseOffset(inv.Arg(0))
	if !ok || len(inv.Args) != 1 {
		return c.svc.usage(c.Name(), c.Usage())
	}
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	if err := p.Seek(ctx, offset); err != nil {
		return err
	}
	return commands.Info(cc, "⏩ Seeked to "+util.FormatDuration(offset))
}

type RewindCommand struct{ svc *Service }

func (c *RewindCommand) Name() string        { return "rewind" }
func (c *RewindCommand) Description() string { return "Jump back in the current track" }
func (c *RewindCommand) Aliases() []string   { return []string{"rw"} }
func (c *RewindCommand) Category() string    { return config.CategoryPlayback }
func (c *RewindCommand) Usage() string       { return "[seconds]" }

func (c *RewindCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return runStep(ctx, c.svc, inv, c.Name(), c.Usage(), "⏪ Rewound to ", (*player.Player).Rewind)
}

type ForwardCommand struct{ svc *Service }

func (c *ForwardCommand) Name() string        { return "forward" }
func (c *ForwardCommand) Description() string { return "Jump ahead in the current track" }
func (c *ForwardCommand) Aliases() []string   { return []string{"ff"} }
func (c *ForwardCommand) Category() string    { return config.CategoryPlayback }
func (c *ForwardCommand) Usage() string       { return "[seconds]" }

func (c *ForwardCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return runStep(ctx, c.svc, inv, c.Name(), c.Usage(), "⏩ Forwarded to ", (*player.Player).Forward)
}

func runStep(ctx context.Context, svc *Service, inv *cmd.Invocation, name, usage, msg string,
	step func(*player.Player, context.Context, time.Duration) (time.Duration, error)) error {
	d := defaultSeekStep
	if len(inv.Args) > 0 {
		off, ok := parseOffset(inv.Arg(0))
		if !ok || off == 0 || len(inv.Args) > 1 {
			return svc.usage(name, usage)
		}
		d = off
	}
	cc, p, err := svc.withSession(inv)
	if err != nil {
		return err
	}
	pos, err := step(p, ctx, d)
	if err != nil {
		return err
	}
	return commands.Info(cc, msg+util.FormatDuration(pos))
}

type VolumeCommand struct{ svc *Service }

func (c *VolumeCommand) Name() string        { return "volume" }
func (c *VolumeCommand) Description() string { return "Show or set the playback volume" }
func (c *VolumeCommand) Aliases() []string   { return []string{"vol", "v"} }
func (c *VolumeCommand) Category() string    { return config.CategoryPlayback }
func (c *VolumeCommand) Usage() string       { return "[0-100]" }

func (c *VolumeCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	if len(inv.Args) == 0 {
		st, err := p.Status()
		if err != nil {
			return err
		}
		return commands.Info(cc, fmt.Sprintf("🔊 Volume is %d%%", st.Volume))
	}

	level, err := strconv.Atoi(inv.Arg(0))
	if err != nil || len(inv.Args) > 1 {
		return c.svc.usage(c.Name(), c.Usage())
	}
	if err := p.SetVolume(ctx, level); err != nil {
		return err
	}
	return commands.Info(cc, fmt.Sprintf("🔊 Volume set to %d%%", level))
}

type NowCommand struct{ svc *Service }

func (c *NowCommand) Name() string        { return "now" }
func (c *NowCommand) Description() string { return "Show the current track" }
func (c *NowCommand) Aliases() []string   { return []string{"current", "np"} }
func (c *NowCommand) Category() string    { return config.CategoryMusic }

func (c *NowCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	st, err := p.Status()
	if err != nil {
		return err
	}
	if st.Track == nil {
		return player.ErrNothingPlaying
	}

	title := "🎶 Now Playing"
	if st.State == player.StatePaused {
		title = "⏸️ Paused"
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       title,
		Description: trackLink(*st.Track) + "\n" + st.Line(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Volume", Value: fmt.Sprintf("%d%%", st.Volume), Inline: true},
			{Name: "Loop", Value: st.Loop.String(), Inline: true},
			{Name: "Queue", Value: plural(st.QueueSize, "track"), Inline: true},
		},
	})
}

type InfoCommand struct{ svc *Service }

func (c *InfoCommand) Name() string        { return "info" }
func (c *InfoCommand) Description() string { return "Show details about the current track" }
func (c *InfoCommand) Aliases() []string   { return nil }
func (c *InfoCommand) Category() string    { return config.CategoryMusic }

func (c *InfoCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	st, err := p.Status()
	if err != nil {
		return err
	}
	if st.Track == nil {
		return player.ErrNothingPlaying
	}
	t := *st.Track

	fields := []*discordgo.MessageEmbedField{
		{Name: "Author", Value: orDash(t.Author), Inline: true},
		{Name: "Duration", Value: trackDuration(t), Inline: true},
		{Name: "Source", Value: orDash(t.SourceName), Inline: true},
		{Name: "State", Value: st.State.String(), Inline: true},
	}
	if t.Seekable() {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Remaining", Value: util.FormatDuration(st.Remaining), Inline: true})
	}
	if t.ISRC != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "ISRC", Value: t.ISRC, Inline: true})
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       "ℹ️ Track Info",
		Description: trackLink(t),
		Fields:      fields,
	})
}

type PlayingCommand struct{ svc *Service }

func (c *PlayingCommand) Name() string        { return "playing" }
func (c *PlayingCommand) Description() string { return "Check whether the bot is playing" }
func (c *PlayingCommand) Aliases() []string   { return []string{"status"} }
func (c *PlayingCommand) Category() string    { return config.CategoryMusic }

func (c *PlayingCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	st, err := p.Status()
	if err != nil {
		return err
	}

	status := "⏹️ Stopped"
	switch st.State {
	case player.StatePlaying:
		status = "▶️ Playing"
	case player.StatePaused:
		status = "⏸️ Paused"
	}
	e := &discordgo.MessageEmbed{Title: "Player Status", Description: status}
	if st.Track != nil {
		e.Fields = []*discordgo.MessageEmbedField{{Name: "Current Track", Value: trackLink(*st.Track)}}
	}
	return cc.Reply(e)
}

// LyricsCommand is a placeholder until a lyrics provider is wired in.
type LyricsCommand struct{ svc *Service }

func (c *LyricsCommand) Name() string        { return "lyrics" }
func (c *LyricsCommand) Description() string { return "Get lyrics for the current track" }
func (c *LyricsCommand) Aliases() []string   { return nil }
func (c *LyricsCommand) Category() string    { return config.CategoryMusic }

func (c *LyricsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, p, err := c.svc.withSession(inv)
	if err != nil {
		return err
	}
	st, err := p.Status()
	if err != nil {
		return err
	}
	if st.State != player.StatePlaying || st.Track == nil {
		return player.ErrNothingPlaying
	}
	return cc.Reply(&discordgo.MessageEmbed{
		Title:       "🎵 Lyrics",
		Description: "Lyrics feature coming soon for " + trackLink(*st.Track),
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (s *Service) withSession(inv *cmd.Invocation) (*commands.Context, *player.Player, error) {
	c, err := commands.From(inv)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.session(c)
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}
