// Package music holds the playback and queue commands.
package music

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/domme-music/internal/commands"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/util"
)

const (
	queuePageSize   = 10
	searchResults   = 10
	defaultSeekStep = 10 * time.Second
	titleLimit      = 80
)

// Sessions is the part of the session registry commands use.
type Sessions interface {
	GetOrCreate(ctx context.Context, guildID string, join player.JoinFunc) (*player.Player, error)
	Lookup(guildID string) (*player.Player, error)
	Remove(ctx context.Context, guildID string) error
}

// Searcher loads tracks without playing them.
type Searcher interface {
	ResolveFrom(ctx context.Context, query, source string) ([]sources.Track, error)
}

// Service carries what the music commands share.
type Service struct {
	Sessions Sessions
	Search   Searcher
	Prefix   string
}

// Commands returns every music command bound to svc.
func Commands(svc *Service) []cmd.Command {
	return []cmd.Command{
		&PlayCommand{svc}, &PlayTopCommand{svc}, &SearchCommand{svc},
		&SkipCommand{svc}, &PauseCommand{svc}, &ResumeCommand{svc}, &StopCommand{svc}, &LeaveCommand{svc},
		&SeekCommand{svc}, &RewindCommand{svc}, &ForwardCommand{svc}, &VolumeCommand{svc},
		&QueueCommand{svc}, &RemoveCommand{svc}, &ClearCommand{svc}, &ShuffleCommand{svc}, &LoopCommand{svc},
		&NowCommand{svc}, &InfoCommand{svc}, &PlayingCommand{svc}, &RecentCommand{svc}, &LyricsCommand{svc},
	}
}

// session returns the guild's existing player.
func (s *Service) session(c *commands.Context) (*player.Player, error) {
	return s.Sessions.Lookup(c.GuildID)
}

// join returns the guild's player, joining the caller's channel if needed.
func (s *Service) join(ctx context.Context, c *commands.Context) (*player.Player, error) {
	if c.Join == nil {
		return nil, player.ErrUserNotInVoice
	}
	return s.Sessions.GetOrCreate(ctx, c.GuildID, c.Join)
}

func (s *Service) usage(name, args string) error {
	return commands.Usagef(s.Prefix, name, args)
}

func trackLink(t sources.Track) string {
	title := util.Truncate(t.DisplayTitle(), titleLimit)
	if t.URI == "" {
		return "**" + title + "**"
	}
	return "[" + title + "](" + t.URI + ")"
}

func trackDuration(t sources.Track) string {
	if t.IsStream {
		return "LIVE"
	}
	return util.FormatDuration(t.Duration)
}

// parseOffset accepts seconds ("90") or a timestamp ("1:30", "1:02:03").
func parseOffset(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}
	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, false
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, true
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
