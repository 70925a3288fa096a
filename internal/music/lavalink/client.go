// Package lavalink talks to a Lavalink v4 node: the websocket carries
// player events, the REST API loads tracks and drives per-guild players.
package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/keshon/domme-music/pkg/retrylimit"
)

const (
	clientName        = "domme-music/1.0"
	resumeTimeoutSecs = 60
	handshakeTimeout  = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("lavalink node is not connected")
	ErrLoadFailed   = errors.New("lavalink failed to load tracks")
	ErrVoiceTimeout = errors.New("timed out waiting for voice server")
)

// EventHandler receives node events. Calls are made from the read loop, one
// at a time.
type EventHandler interface {
	OnTrackEnd(ctx context.Context, guildID, encoded, reason string)
	OnPlayerUpdate(ctx context.Context, guildID string, position time.Duration)
	OnNodeReady(ctx context.Context, node string, resumed bool)
	OnVoiceClosed(ctx context.Context, guildID string, code int, byRemote bool)
}

// VoiceConn sends voice channel joins over the Discord gateway.
// *discordgo.Session satisfies it.
type VoiceConn interface {
	ChannelVoiceJoinManual(guildID, channelID string, mute, deaf bool) error
}

type Config struct {
	Node              NodeConfig
	UserID            string
	DefaultVolume     int
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Voice             VoiceConn
	HTTPClient        *http.Client
	Logger            zerolog.Logger
}

// Client is one node connection. It implements the player backend and the
// track loader.
type Client struct {
	node          NodeConfig
	userID        string
	defaultVolume int
	http          *http.Client
	dialer        websocket.Dialer
	limiter       *retrylimit.AdaptiveLimiter
	retry         retrylimit.RetryConfig
	reconnect     retrylimit.RetryConfig
	voiceConn     VoiceConn
	log           zerolog.Logger

	mu        sync.RWMutex
	handler   EventHandler
	sessionID string
	conn      *websocket.Conn
	volumes   map[string]int
	voice     map[string]*VoiceState
	waiters   map[string]chan struct{}
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	log := cfg.Logger.With().Str("component", "lavalink").Str("node", cfg.Node.Name).Logger()

	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 3
	retry.InitialDelay = 200 * time.Millisecond
	retry.MaxDelay = time.Second
	retry.Logger = log

	reconnect := retrylimit.DefaultRetryConfig()
	reconnect.MaxAttempts = max(cfg.ReconnectAttempts, 1)
	reconnect.InitialDelay = cfg.ReconnectDelay
	reconnect.MaxDelay = 8 * max(cfg.ReconnectDelay, time.Second)
	reconnect.Logger = log

	return &Client{
		node:          cfg.Node,
		userID:        cfg.UserID,
		defaultVolume: cfg.DefaultVolume,
		http:          httpClient,
		dialer:        websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		limiter:       retrylimit.NewAdaptiveLimiter(20, 1, 50, 1, 0.5),
		retry:         retry,
		reconnect:     reconnect,
		voiceConn:     cfg.Voice,
		log:           log,
		volumes:       make(map[string]int),
		voice:         make(map[string]*VoiceState),
		waiters:       make(map[string]chan struct{}),
	}
}

// SetHandler installs the receiver of node events.
func (c *Client) SetHandler(h EventHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// SessionID returns the node session, or "" before the first ready op.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) baseURL(scheme string) string {
	if c.node.Secure {
		scheme += "s"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.node.Host, c.node.Port)
}

// Run keeps the websocket connected until ctx is done. It returns an error
// only when reconnecting gave up.
func (c *Client) Run(ctx context.Context) error {
	for {
		var conn *websocket.Conn
		err := retrylimit.WithRetryConfig(ctx, func() error {
			var err error
			conn, err = c.dial(ctx)
			return err
		}, nil, c.reconnect)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "connect to node %s", c.node.Name)
		}

		err = c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Msg("connection lost, reconnecting")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", c.node.Password)
	headers.Set("User-Id", c.userID)
	headers.Set("Client-Name", clientName)
	if sid := c.SessionID(); sid != "" {
		headers.Set("Session-Id", sid)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.baseURL("ws")+"/v4/websocket", headers)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, retrylimit.Fatal(errors.Wrap(err, "node rejected password"))
		}
		return nil, err
	}
	c.log.Info().Msg("connected to node")
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("undecodable message")
			continue
		}
		c.dispatch(ctx, &msg)
	}
}

func (c *Client) dispatch(ctx context.Context, msg *message) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	switch msg.Op {
	case opReady:
		c.mu.Lock()
		c.sessionID = msg.SessionID
		c.mu.Unlock()
		c.log.Info().Str("session", msg.SessionID).Bool("resumed", msg.Resumed).Msg("node ready")
		if err := c.enableResume(ctx); err != nil {
			c.log.Warn().Err(err).Msg("failed to enable session resuming")
		}
		if !msg.Resumed {
			c.restoreVoice(ctx)
		}
		if h != nil {
			h.OnNodeReady(ctx, c.node.Name, msg.Resumed)
		}

	case opPlayerUpdate:
		if msg.State != nil && h != nil {
			h.OnPlayerUpdate(ctx, msg.GuildID, time.Duration(msg.State.Position)*time.Millisecond)
		}

	case opStats:
		c.log.Debug().Int("players", msg.Players).Int("playing", msg.PlayingPlayers).Msg("node stats")

	case opEvent:
		c.handleEvent(ctx, h, msg)
	}
}

func (c *Client) handleEvent(ctx context.Context, h EventHandler, msg *message) {
	log := c.log.With().Str("guild", msg.GuildID).Str("event", msg.Type).Logger()
	encoded := ""
	if msg.Track != nil {
		encoded = msg.Track.Encoded
	}

	switch msg.Type {
	case eventTrackStart:
		log.Debug().Msg("track started")

	case eventTrackEnd:
		log.Debug().Str("reason", msg.Reason).Msg("track ended")
		if h != nil {
			h.OnTrackEnd(ctx, msg.GuildID, encoded, msg.Reason)
		}

	case eventTrackException:
		// the node follows up with a TrackEndEvent (loadFailed)
		if msg.Exception != nil {
			log.Warn().Str("severity", msg.Exception.Severity).Str("cause", msg.Exception.Cause).Msg(msg.Exception.Message)
		}

	case eventTrackStuck:
		log.Warn().Int64("threshold_ms", msg.ThresholdMs).Msg("track stuck, skipping")
		if h != nil {
			h.OnTrackEnd(ctx, msg.GuildID, encoded, "loadFailed")
		}

	case eventWebSocketClosed:
		if h != nil {
			h.OnVoiceClosed(ctx, msg.GuildID, msg.Code, msg.ByRemote)
		}
	}
}

// restoreVoice re-sends voice credentials after the node lost its session.
func (c *Client) restoreVoice(ctx context.Context) {
	c.mu.RLock()
	pending := make(map[string]VoiceState, len(c.voice))
	for guild, v := range c.voice {
		if v.complete() {
			pending[guild] = *v
		}
	}
	c.mu.RUnlock()

	for guild, v := range pending {
		if err := c.updatePlayer(ctx, guild, playerUpdate{Voice: &v}); err != nil {
			c.log.Warn().Err(err).Str("guild", guild).Msg("failed to restore voice")
		}
	}
}

// Close drops the websocket. Run reconnects unless its context is done.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}
