package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/pkg/retrylimit"
)

// do sends one REST request with retries. Client errors other than 429 are
// not retried.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	return retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL("http")+path, bytes.NewReader(payload))
		if err != nil {
			return retrylimit.Fatal(err)
		}
		req.Header.Set("Authorization", c.node.Password)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			var re restError
			_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&re)
			serr := &retrylimit.StatusError{Code: resp.StatusCode, Message: re.Message}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retrylimit.Fatal(errors.Wrapf(serr, "%s %s", method, path))
			}
			return errors.Wrapf(serr, "%s %s", method, path)
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
	}, c.limiter, c.retry)
}

// LoadTracks resolves identifier (a URL or a "ytsearch:" style query) on the
// node. Empty results are not an error.
func (c *Client) LoadTracks(ctx context.Context, identifier string) ([]sources.Track, error) {
	var res loadResult
	if err := c.do(ctx, http.MethodGet, "/v4/loadtracks?identifier="+url.QueryEscape(identifier), nil, &res); err != nil {
		return nil, err
	}

	var wire []Track
	switch res.LoadType {
	case LoadTrack:
		var t Track
		if err := json.Unmarshal(res.Data, &t); err != nil {
			return nil, errors.Wrap(err, "decode track")
		}
		wire = []Track{t}
	case LoadPlaylist:
		var pl playlistData
		if err := json.Unmarshal(res.Data, &pl); err != nil {
			return nil, errors.Wrap(err, "decode playlist")
		}
		c.log.Debug().Str("playlist", pl.Info.Name).Int("tracks", len(pl.Tracks)).Msg("loaded playlist")
		wire = pl.Tracks
	case LoadSearch:
		if err := json.Unmarshal(res.Data, &wire); err != nil {
			return nil, errors.Wrap(err, "decode search results")
		}
	case LoadEmpty:
		return nil, nil
	case LoadError:
		var ex Exception
		_ = json.Unmarshal(res.Data, &ex)
		return nil, errors.Wrapf(ErrLoadFailed, "%s (%s)", ex.Message, ex.Severity)
	default:
		return nil, errors.Wrapf(ErrLoadFailed, "unknown load type %q", res.LoadType)
	}

	out := make([]sources.Track, 0, len(wire))
	for _, t := range wire {
		out = append(out, t.ToSource())
	}
	return out, nil
}

func (c *Client) playerPath(guildID string) (string, error) {
	sid := c.SessionID()
	if sid == "" {
		return "", ErrNotConnected
	}
	return "/v4/sessions/" + sid + "/players/" + guildID, nil
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, u playerUpdate) error {
	path, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path, u, nil)
}

func (c *Client) enableResume(ctx context.Context) error {
	sid := c.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	return c.do(ctx, http.MethodPatch, "/v4/sessions/"+sid, sessionUpdate{Resuming: true, Timeout: resumeTimeoutSecs}, nil)
}

func (c *Client) volume(guildID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.volumes[guildID]; ok {
		return v
	}
	return c.defaultVolume
}

// Play starts track at start, replacing whatever the guild was playing.
func (c *Client) Play(ctx context.Context, guildID string, track sources.Track, start time.Duration) error {
	encoded := track.Encoded
	pos := start.Milliseconds()
	vol := c.volume(guildID)
	paused := false
	return c.updatePlayer(ctx, guildID, playerUpdate{
		Track:    &trackUpdate{Encoded: &encoded},
		Position: &pos,
		Volume:   &vol,
		Paused:   &paused,
	})
}

func (c *Client) Pause(ctx context.Context, guildID string) error {
	paused := true
	return c.updatePlayer(ctx, guildID, playerUpdate{Paused: &paused})
}

func (c *Client) Resume(ctx context.Context, guildID string) error {
	paused := false
	return c.updatePlayer(ctx, guildID, playerUpdate{Paused: &paused})
}

func (c *Client) Seek(ctx context.Context, guildID string, position time.Duration) error {
	pos := position.Milliseconds()
	return c.updatePlayer(ctx, guildID, playerUpdate{Position: &pos})
}

// SetVolume applies level (0-100) and remembers it for later plays.
func (c *Client) SetVolume(ctx context.Context, guildID string, level int) error {
	if err := c.updatePlayer(ctx, guildID, playerUpdate{Volume: &level}); err != nil {
		return err
	}
	c.mu.Lock()
	c.volumes[guildID] = level
	c.mu.Unlock()
	return nil
}

// Stop ends the current track; the node reports it with reason "stopped".
func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Track: &trackUpdate{}})
}

// Disconnect destroys the guild's node player and leaves the voice channel.
func (c *Client) Disconnect(ctx context.Context, guildID string) error {
	c.mu.Lock()
	delete(c.volumes, guildID)
	delete(c.voice, guildID)
	if ch, ok := c.waiters[guildID]; ok {
		close(ch)
		delete(c.waiters, guildID)
	}
	c.mu.Unlock()

	var errs error
	if path, err := c.playerPath(guildID); err == nil {
		err = c.do(ctx, http.MethodDelete, path, nil, nil)
		var serr *retrylimit.StatusError
		if err != nil && !(errors.As(err, &serr) && serr.Code == http.StatusNotFound) {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if c.voiceConn != nil {
		if err := c.voiceConn.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "leave voice channel"))
		}
	}
	return errs
}
