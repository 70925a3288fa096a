package lavalink

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const testPassword = "youshallnotpass"

type request struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeNode is a minimal Lavalink v4 server.
type fakeNode struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	requests    []request
	conns       []*websocket.Conn
	resumeIDs   []string
	flakyFailed bool
	deleteCode  int

	// wmu serializes writes; a websocket allows one writer at a time.
	wmu sync.Mutex
}

func newFakeNode(t *testing.T) *fakeNode {
	n := &fakeNode{t: t, deleteCode: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/websocket", n.websocket)
	mux.HandleFunc("GET /v4/loadtracks", n.loadTracks)
	mux.HandleFunc("PATCH /v4/sessions/{sid}", n.record(http.StatusOK))
	mux.HandleFunc("PATCH /v4/sessions/{sid}/players/{guild}", n.record(http.StatusOK))
	mux.HandleFunc("DELETE /v4/sessions/{sid}/players/{guild}", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		code := n.deleteCode
		n.mu.Unlock()
		n.record(code)(w, r)
	})
	n.srv = httptest.NewServer(n.auth(mux))
	t.Cleanup(func() {
		n.mu.Lock()
		for _, c := range n.conns {
			c.Close()
		}
		n.mu.Unlock()
		n.srv.Close()
	})
	return n
}

func (n *fakeNode) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (n *fakeNode) websocket(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("User-Id") == "" || r.Header.Get("Client-Name") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	resumeID := r.Header.Get("Session-Id")
	n.wmu.Lock()
	n.mu.Lock()
	n.conns = append(n.conns, conn)
	n.resumeIDs = append(n.resumeIDs, resumeID)
	n.mu.Unlock()
	_ = conn.WriteJSON(map[string]any{"op": "ready", "resumed": resumeID != "", "sessionId": "s1"})
	n.wmu.Unlock()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (n *fakeNode) loadTracks(w http.ResponseWriter, r *http.Request) {
	track := map[string]any{
		"encoded": "QAAA",
		"info": map[string]any{
			"identifier": "abc", "isSeekable": true, "author": "Rick", "length": 213000,
			"isStream": false, "title": "Never Gonna", "uri": "https://youtu.be/abc", "sourceName": "youtube",
		},
	}
	var body any
	switch id := r.URL.Query().Get("identifier"); id {
	case "one":
		body = map[string]any{"loadType": "track", "data": track}
	case "list":
		body = map[string]any{"loadType": "playlist", "data": map[string]any{
			"info": map[string]any{"name": "mix"}, "tracks": []any{track, track},
		}}
	case "ytsearch:never gonna":
		body = map[string]any{"loadType": "search", "data": []any{track, track, track}}
	case "none":
		body = map[string]any{"loadType": "empty", "data": map[string]any{}}
	case "broken":
		body = map[string]any{"loadType": "error", "data": map[string]any{"message": "video unavailable", "severity": "common"}}
	case "flaky":
		n.mu.Lock()
		failed := n.flakyFailed
		n.flakyFailed = true
		n.mu.Unlock()
		if !failed {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body = map[string]any{"loadType": "track", "data": track}
	default:
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"status": 400, "message": "bad identifier " + id})
		return
	}
	json.NewEncoder(w).Encode(body)
}

func (n *fakeNode) record(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{Method: r.Method, Path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &req.Body)
		}
		n.mu.Lock()
		n.requests = append(n.requests, req)
		n.mu.Unlock()
		if code == http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("{}"))
			return
		}
		w.WriteHeader(code)
	}
}

func (n *fakeNode) push(v any) {
	n.mu.Lock()
	conn := n.conns[len(n.conns)-1]
	n.mu.Unlock()
	n.wmu.Lock()
	err := conn.WriteJSON(v)
	n.wmu.Unlock()
	if err != nil {
		n.t.Fatalf("push: %v", err)
	}
}

func (n *fakeNode) dropConnection() {
	n.mu.Lock()
	conn := n.conns[len(n.conns)-1]
	n.mu.Unlock()
	conn.Close()
}

func (n *fakeNode) lastRequest(method, path string) (request, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.requests) - 1; i >= 0; i-- {
		if n.requests[i].Method == method && n.requests[i].Path == path {
			return n.requests[i], true
		}
	}
	return request{}, false
}

func (n *fakeNode) config() NodeConfig {
	host, port, _ := net.SplitHostPort(strings.TrimPrefix(n.srv.URL, "http://"))
	p, _ := strconv.Atoi(port)
	return NodeConfig{Name: "test", Host: host, Port: p, Password: testPassword}
}

type event struct {
	kind    string
	guild   string
	encoded string
	reason  string
	pos     time.Duration
	code    int
	resumed bool
}

type recorder struct {
	ch chan event
}

func (r *recorder) OnTrackEnd(_ context.Context, guildID, encoded, reason string) {
	r.ch <- event{kind: "end", guild: guildID, encoded: encoded, reason: reason}
}

func (r *recorder) OnPlayerUpdate(_ context.Context, guildID string, pos time.Duration) {
	r.ch <- event{kind: "update", guild: guildID, pos: pos}
}

func (r *recorder) OnNodeReady(_ context.Context, _ string, resumed bool) {
	r.ch <- event{kind: "ready", resumed: resumed}
}

func (r *recorder) OnVoiceClosed(_ context.Context, guildID string, code int, _ bool) {
	r.ch <- event{kind: "closed", guild: guildID, code: code}
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

type fakeVoice struct {
	mu     sync.Mutex
	client *Client
	joins  []string
	silent bool
}

func (f *fakeVoice) ChannelVoiceJoinManual(guildID, channelID string, _, _ bool) error {
	f.mu.Lock()
	f.joins = append(f.joins, guildID+"/"+channelID)
	silent := f.silent
	f.mu.Unlock()
	if silent || channelID == "" {
		return nil
	}
	go func() {
		f.client.OnVoiceServerUpdate(nil, &discordgo.VoiceServerUpdate{GuildID: guildID, Token: "tok", Endpoint: "eu.discord.media"})
		f.client.OnVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
			GuildID: guildID, ChannelID: channelID, UserID: "bot", SessionID: "voice-session",
		}})
	}()
	return nil
}

func newTestClient(t *testing.T, node *fakeNode) (*Client, *fakeVoice) {
	voice := &fakeVoice{}
	c := New(Config{
		Node:              node.config(),
		UserID:            "bot",
		DefaultVolume:     50,
		ReconnectAttempts: 3,
		ReconnectDelay:    10 * time.Millisecond,
		Voice:             voice,
		Logger:            zerolog.Nop(),
	})
	c.retry.InitialDelay = time.Millisecond
	c.retry.Jitter = false
	voice.client = c
	return c, voice
}

// startClient runs the client until the test ends and waits for ready.
func startClient(t *testing.T, c *Client) *recorder {
	t.Helper()
	rec := &recorder{ch: make(chan event, 32)}
	c.SetHandler(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if e := rec.next(t); e.kind != "ready" || e.resumed {
		t.Fatalf("first event = %+v, want fresh ready", e)
	}
	return rec
}

func TestLoadTracks(t *testing.T) {
	node := newFakeNode(t)
	c, _ := newTestClient(t, node)
	ctx := context.Background()

	tests := []struct {
		id      string
		want    int
		wantErr error
	}{
		{"one", 1, nil},
		{"list", 2, nil},
		{"ytsearch:never gonna", 3, nil},
		{"none", 0, nil},
		{"broken", 0, ErrLoadFailed},
		{"flaky", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tracks, err := c.LoadTracks(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(tracks) != tt.want {
				t.Fatalf("got %d tracks, want %d", len(tracks), tt.want)
			}
		})
	}

	tracks, _ := c.LoadTracks(ctx, "one")
	got := tracks[0]
	if got.Title != "Never Gonna" || got.Author != "Rick" || got.Duration != 213*time.Second || got.Encoded != "QAAA" || !got.Seekable() {
		t.Errorf("converted track = %+v", got)
	}
}

func TestTrackDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"video", `{"encoded":"a","info":{"length":213000}}`, 213 * time.Second},
		{"stream", `{"encoded":"b","info":{"length":9223372036854775807,"isStream":true}}`, 0},
		{"overflow", `{"encoded":"c","info":{"length":9223372036854775807}}`, 0},
		{"negative", `{"encoded":"d","info":{"length":-5}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Track
			if err := json.Unmarshal([]byte(tt.raw), &tr); err != nil {
				t.Fatal(err)
			}
			if got := tr.ToSource().Duration; got != tt.want {
				t.Errorf("Duration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadTracksClientErrorIsNotRetried(t *testing.T) {
	node := newFakeNode(t)
	c, _ := newTestClient(t, node)

	_, err := c.LoadTracks(context.Background(), "bogus")
	var serr interface{ StatusCode() int }
	if !errors.As(err, &serr) || serr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("err = %v, want a 400 status error", err)
	}
	if !strings.Contains(err.Error(), "bad identifier") {
		t.Errorf("error lost the node message: %v", err)
	}
}

func TestCommandsBeforeReady(t *testing.T) {
	node := newFakeNode(t)
	c, _ := newTestClient(t, node)

	if err := c.Pause(context.Background(), "g1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Pause = %v, want ErrNotConnected", err)
	}
	if err := c.Join(context.Background(), "g1", "v1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Join = %v, want ErrNotConnected", err)
	}
}

func TestRunEnablesResumeAndDispatchesEvents(t *testing.T) {
	node := newFakeNode(t)
	c, _ := newTestClient(t, node)
	rec := startClient(t, c)

	if c.SessionID() != "s1" {
		t.Fatalf("SessionID = %q", c.SessionID())
	}
	req, ok := node.lastRequest(http.MethodPatch, "/v4/sessions/s1")
	if !ok || req.Body["resuming"] != true || req.Body["timeout"] != float64(resumeTimeoutSecs) {
		t.Errorf("resume request = %+v, %v", req, ok)
	}

	node.push(map[string]any{"op": "stats", "players": 1, "playingPlayers": 1})
	node.push(map[string]any{"op": "playerUpdate", "guildId": "g1", "state": map[string]any{"position": 1500, "connected": true}})
	node.push(map[string]any{"op": "event", "type": "TrackStartEvent", "guildId": "g1", "track": map[string]any{"encoded": "A"}})
	node.push(map[string]any{"op": "event", "type": "TrackExceptionEvent", "guildId": "g1", "exception": map[string]any{"message": "boom"}})
	node.push(map[string]any{"op": "event", "type": "TrackEndEvent", "guildId": "g1", "track": map[string]any{"encoded": "A"}, "reason": "finished"})
	node.push(map[string]any{"op": "event", "type": "TrackStuckEvent", "guildId": "g1", "track": map[string]any{"encoded": "B"}, "thresholdMs": 10000})
	node.push(map[string]any{"op": "event", "type": "WebSocketClosedEvent", "guildId": "g1", "code": 4014, "byRemote": true})

	want := []event{
		{kind: "update", guild: "g1", pos: 1500 * time.Millisecond},
		{kind: "end", guild: "g1", encoded: "A", reason: "finished"},
		{kind: "end", guild: "g1", encoded: "B", reason: "loadFailed"},
		{kind: "closed", guild: "g1", code: 4014},
	}
	for i, w := range want {
		if got := rec.next(t); got != w {
			t.Errorf("event %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestReconnectResumesSession(t *testing.T) {
	node := newFakeNode(t)
	c, _ := newTestClient(t, node)
	rec := startClient(t, c)

	node.dropConnection()
	if e := rec.next(t); e.kind != "ready" || !e.resumed {
		t.Fatalf("after reconnect got %+v, want resumed ready", e)
	}
	node.mu.Lock()
	ids := append([]string(nil), node.resumeIDs...)
	node.mu.Unlock()
	if len(ids) != 2 || ids[0] != "" || ids[1] != "s1" {
		t.Errorf("Session-Id headers = %q", ids)
	}
}

func TestRunGivesUpOnBadPassword(t *testing.T) {
	node := newFakeNode(t)
	cfg := node.config()
	cfg.Password = "wrong"
	c := New(Config{Node: cfg, UserID: "bot", ReconnectAttempts: 5, ReconnectDelay: time.Millisecond, Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Run(ctx); err == nil || ctx.Err() != nil {
		t.Fatalf("Run = %v (ctx %v), want an immediate error", err, ctx.Err())
	}
	node.mu.Lock()
	defer node.mu.Unlock()
	if len(node.conns) != 0 {
		t.Error("connection accepted with a wrong password")
	}
}

func TestPlayerCommands(t *testing.T) {
	node := newFakeNode(t)
	c, _ := newTestClient(t, node)
	startClient(t, c)
	ctx := context.Background()
	path := "/v4/sessions/s1/players/g1"

	check := func(name string, want map[string]any) {
		t.Helper()
		req, ok := node.lastRequest(http.MethodPatch, path)
		if !ok {
			t.Fatalf("%s: no request", name)
		}
		for k, v := range want {
			got, _ := json.Marshal(req.Body[k])
			exp, _ := json.Marshal(v)
			if string(got) != string(exp) {
				t.Errorf("%s: %s = %s, want %s", name, k, got, exp)
			}
		}
	}

	track := Track{Encoded: "QAAA"}.ToSource()
	if err := c.Play(ctx, "g1", track, 30*time.Second); err != nil {
		t.Fatal(err)
	}
	check("play", map[string]any{"track": map[string]any{"encoded": "QAAA"}, "position": 30000, "volume": 50, "paused": false})

	if err := c.Pause(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	check("pause", map[string]any{"paused": true})

	if err := c.Resume(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	check("resume", map[string]any{"paused": false})

	if err := c.Seek(ctx, "g1", 90*time.Second); err != nil {
		t.Fatal(err)
	}
	check("seek", map[string]any{"position": 90000})

	if err := c.SetVolume(ctx, "g1", 80); err != nil {
		t.Fatal(err)
	}
	check("volume", map[string]any{"volume": 80})

	if err := c.Play(ctx, "g1", track, 0); err != nil {
		t.Fatal(err)
	}
	check("play keeps volume", map[string]any{"volume": 80})

	if err := c.Stop(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	check("stop", map[string]any{"track": map[string]any{"encoded": nil}})
}

func TestJoinAndDisconnect(t *testing.T) {
	node := newFakeNode(t)
	c, voice := newTestClient(t, node)
	startClient(t, c)
	ctx := context.Background()

	// events for other users and unknown guilds are ignored
	c.OnVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{GuildID: "g1", UserID: "someone"}})
	c.OnVoiceServerUpdate(nil, &discordgo.VoiceServerUpdate{GuildID: "g9", Token: "x", Endpoint: "y"})

	if err := c.Join(ctx, "g1", "v1"); err != nil {
		t.Fatal(err)
	}
	req, ok := node.lastRequest(http.MethodPatch, "/v4/sessions/s1/players/g1")
	if !ok {
		t.Fatal("voice was not sent to the node")
	}
	v, _ := req.Body["voice"].(map[string]any)
	if v["token"] != "tok" || v["endpoint"] != "eu.discord.media" || v["sessionId"] != "voice-session" {
		t.Errorf("voice = %v", v)
	}

	node.mu.Lock()
	node.deleteCode = http.StatusNotFound
	node.mu.Unlock()
	if err := c.Disconnect(ctx, "g1"); err != nil {
		t.Fatalf("Disconnect with a missing node player: %v", err)
	}
	if _, ok := node.lastRequest(http.MethodDelete, "/v4/sessions/s1/players/g1"); !ok {
		t.Error("player was not destroyed")
	}
	voice.mu.Lock()
	defer voice.mu.Unlock()
	if len(voice.joins) != 2 || voice.joins[1] != "g1/" {
		t.Errorf("voice joins = %q, want a leave after the join", voice.joins)
	}
}

func TestJoinTimesOut(t *testing.T) {
	node := newFakeNode(t)
	c, voice := newTestClient(t, node)
	startClient(t, c)
	voice.silent = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Join(ctx, "g1", "v1"); !errors.Is(err, ErrVoiceTimeout) {
		t.Errorf("Join = %v, want ErrVoiceTimeout", err)
	}
}
