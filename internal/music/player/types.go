package player

import (
	"context"
	"time"

	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/sources"
)

// Backend issues playback commands to the audio node for one guild.
type Backend interface {
	Play(ctx context.Context, guildID string, track sources.Track, start time.Duration) error
	Pause(ctx context.Context, guildID string) error
	Resume(ctx context.Context, guildID string) error
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, level int) error
	Stop(ctx context.Context, guildID string) error
	Disconnect(ctx context.Context, guildID string) error
}

// Resolver turns a free-text query or URL into candidate tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]sources.Track, error)
}

// Notifier delivers asynchronous status messages to a text channel.
type Notifier interface {
	Notify(ctx context.Context, channelID string, n Notification) error
}

// Session describes a live voice connection handed to a new player.
type Session struct {
	GuildID        string
	VoiceChannelID string
	HomeChannelID  string
}

// JoinFunc connects to the caller's voice channel.
// It fails with ErrUserNotInVoice or ErrConnectFailed.
type JoinFunc func(ctx context.Context) (Session, error)

// State of a player.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// EndReason is the reason the audio node gives for a finished track.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// NotificationKind identifies an asynchronous status message.
type NotificationKind int

const (
	NotifyNowPlaying NotificationKind = iota
	NotifyQueueFinished
	NotifyTrackFailed
	NotifyIdleDisconnect
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyNowPlaying:
		return "now-playing"
	case NotifyQueueFinished:
		return "queue-finished"
	case NotifyTrackFailed:
		return "track-failed"
	case NotifyIdleDisconnect:
		return "idle-disconnect"
	default:
		return "unknown"
	}
}

// Notification is a structured status message sent to the home channel.
type Notification struct {
	Kind      NotificationKind
	GuildID   string
	Track     sources.Track
	QueueSize int
	Err       error
}

// PlayResult reports what a play request did.
type PlayResult struct {
	Track    sources.Track
	Started  bool
	Position int
}

// Status is a read-only view of a player.
type Status struct {
	State     State
	Track     *sources.Track
	Elapsed   time.Duration
	Remaining time.Duration
	Volume    int
	Loop      queue.LoopMode
	QueueSize int
	Progress  string
}
