package lavalink

import (
	"encoding/json"
	"math"
	"time"

	"github.com/keshon/domme-music/internal/music/sources"
)

// NodeConfig describes one Lavalink node.
type NodeConfig struct {
	Name     string
	Host     string
	Port     int
	Password string
	Secure   bool
}

// TrackInfo is the metadata block of a Lavalink track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
	SourceName string `json:"sourceName"`
}

// Streams report math.MaxInt64 as their length.
func (i TrackInfo) duration() time.Duration {
	if i.IsStream || i.Length <= 0 || i.Length > math.MaxInt64/int64(time.Millisecond) {
		return 0
	}
	return time.Duration(i.Length) * time.Millisecond
}

// Track is a track as the node encodes it.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// ToSource converts the wire track into the bot's track reference.
func (t Track) ToSource() sources.Track {
	return sources.Track{
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		URI:        t.Info.URI,
		Duration:   t.Info.duration(),
		ISRC:       t.Info.ISRC,
		Identifier: t.Info.Identifier,
		SourceName: t.Info.SourceName,
		IsStream:   t.Info.IsStream,
		IsSeekable: t.Info.IsSeekable,
		Encoded:    t.Encoded,
	}
}

// Load result types of GET /v4/loadtracks.
const (
	LoadTrack    = "track"
	LoadPlaylist = "playlist"
	LoadSearch   = "search"
	LoadEmpty    = "empty"
	LoadError    = "error"
)

type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

// Exception is the node's description of a failure.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// VoiceState is what the node needs to connect to a Discord voice server.
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (v VoiceState) complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

// trackUpdate marshals a nil Encoded as null, which stops playback.
type trackUpdate struct {
	Encoded *string `json:"encoded"`
}

type playerUpdate struct {
	Track    *trackUpdate `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Voice    *VoiceState  `json:"voice,omitempty"`
}

type sessionUpdate struct {
	Resuming bool `json:"resuming"`
	Timeout  int  `json:"timeout"`
}

type restError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Websocket ops.
const (
	opReady        = "ready"
	opPlayerUpdate = "playerUpdate"
	opStats        = "stats"
	opEvent        = "event"
)

// Event types.
const (
	eventTrackStart      = "TrackStartEvent"
	eventTrackEnd        = "TrackEndEvent"
	eventTrackException  = "TrackExceptionEvent"
	eventTrackStuck      = "TrackStuckEvent"
	eventWebSocketClosed = "WebSocketClosedEvent"
)

// message is the union of every websocket payload the client reads.
type message struct {
	Op string `json:"op"`

	// ready
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`

	// playerUpdate
	GuildID string `json:"guildId"`
	State   *struct {
		Time      int64 `json:"time"`
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
		Ping      int64 `json:"ping"`
	} `json:"state"`

	// stats
	Players        int `json:"players"`
	PlayingPlayers int `json:"playingPlayers"`

	// event
	Type        string     `json:"type"`
	Track       *Track     `json:"track"`
	Reason      string     `json:"reason"`
	Exception   *Exception `json:"exception"`
	ThresholdMs int64      `json:"thresholdMs"`
	Code        int        `json:"code"`
	ByRemote    bool       `json:"byRemote"`
}
