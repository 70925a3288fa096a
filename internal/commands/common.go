package commands

import (
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/source_resolver"
)

const (
	EmbedColor = 0xb01e66
	ErrorColor = 0xd83c3e
)

// Info replies with a plain description.
func Info(c *Context, description string) error {
	return c.Reply(&discordgo.MessageEmbed{Description: description})
}

// ReplyError reports err to the user in a form they can act on.
func ReplyError(c *Context, err error) error {
	return c.Reply(&discordgo.MessageEmbed{
		Description: "❌ " + Describe(err),
		Color:       ErrorColor,
	})
}

// user-facing errors whose own text is shown as is
var known = []error{
	ErrGuildOnly,
	ErrRateLimited,
	player.ErrNoResults,
	player.ErrNothingPlaying,
	player.ErrAlreadyPaused,
	player.ErrNotPaused,
	player.ErrSessionClosed,
	player.ErrNoSession,
	player.ErrInvalidSeekPosition,
	player.ErrInvalidVolume,
	player.ErrSkipInProgress,
	player.ErrUserNotInVoice,
	player.ErrConnectFailed,
	queue.ErrCapacityExceeded,
	queue.ErrInvalidPosition,
	queue.ErrInvalidPage,
	queue.ErrInvalidLoopMode,
	source_resolver.ErrUnknownSource,
	source_resolver.ErrSearchNotSupported,
	source_resolver.ErrSourceMismatch,
}

// Describe turns err into one sentence for chat. Backend and resolver
// failures get their hint; anything unexpected stays generic.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return sentence(k.Error())
		}
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return usage.Error()
	}
	if player.Retryable(err) {
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			return sentence(hints[0])
		}
		return "The music service is unavailable right now. Please try again."
	}
	return "Something went wrong while running that command."
}

// UsageError reports malformed arguments.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return "Usage: `" + e.Usage + "`" }

// Usagef is shorthand for a UsageError with the command's usage line.
func Usagef(prefix, name, args string) error {
	return &UsageError{Usage: strings.TrimSpace(prefix + name + " " + args)}
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	out := string(r)
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}
