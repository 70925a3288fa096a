package player

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/keshon/domme-music/pkg/jobmgr"
	"github.com/keshon/domme-music/pkg/util"
)

const closeWorkers = 4

// RegistryConfig holds what every player created by a Registry shares.
type RegistryConfig struct {
	Backend       Backend
	Resolver      Resolver
	Notifier      Notifier
	MaxQueueSize  int
	DefaultVolume int
	Timeout       time.Duration
	IdleTimeout   time.Duration
	Jobs          *jobmgr.Manager
	Logger        zerolog.Logger
	Clock         func() time.Time
}

// Registry maps guild IDs to their players. Creation for one guild is
// serialized so concurrent commands never produce two players.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	group   singleflight.Group

	cfg  RegistryConfig
	jobs *jobmgr.Manager
	log  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	jobs := cfg.Jobs
	if jobs == nil {
		jobs = jobmgr.NewManager(nil)
	}
	return &Registry{
		players: make(map[string]*Player),
		cfg:     cfg,
		jobs:    jobs,
		log:     cfg.Logger.With().Str("component", "registry").Logger(),
	}
}

// GetOrCreate returns the guild's player, joining voice through join when
// there is none. Errors from join are returned unchanged.
func (r *Registry) GetOrCreate(ctx context.Context, guildID string, join JoinFunc) (*Player, error) {
	if p := r.Get(guildID); p != nil {
		return p, nil
	}

	v, err, _ := r.group.Do(guildID, func() (any, error) {
		if p := r.Get(guildID); p != nil {
			return p, nil
		}

		sess, err := join(ctx)
		if err != nil {
			return nil, err
		}
		sess.GuildID = guildID

		p := New(Config{
			Session:      sess,
			Backend:      r.cfg.Backend,
			Resolver:     r.cfg.Resolver,
			Notifier:     r.cfg.Notifier,
			MaxQueueSize: r.cfg.MaxQueueSize,
			Volume:       r.cfg.DefaultVolume,
			Timeout:      r.cfg.Timeout,
			Logger:       r.cfg.Logger,
			Clock:        r.cfg.Clock,
		})
		p.onState = r.stateChanged
		p.onClose = r.release

		r.mu.Lock()
		r.players[guildID] = p
		r.mu.Unlock()

		r.armIdle(p)
		r.log.Info().
			Str("guild", guildID).
			Str("voice_channel", sess.VoiceChannelID).
			Str("player", p.ID()).
			Msg("session created")
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Player), nil
}

// Get returns the guild's player or nil.
func (r *Registry) Get(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[guildID]
}

// Lookup is Get with ErrNoSession for a missing player.
func (r *Registry) Lookup(guildID string) (*Player, error) {
	if p := r.Get(guildID); p != nil {
		return p, nil
	}
	return nil, ErrNoSession
}

// Remove detaches the guild's player and disconnects it. Removing an
// unknown guild is a no-op.
func (r *Registry) Remove(ctx context.Context, guildID string) error {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := p.Disconnect(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
		return err
	}
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// CloseAll disconnects every player. Failures are logged, not returned.
func (r *Registry) CloseAll(ctx context.Context) {
	players := r.snapshot()
	_ = util.Parallel(ctx, players, closeWorkers, func(ctx context.Context, p *Player) error {
		if err := p.Disconnect(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
			r.log.Warn().Err(err).Str("guild", p.GuildID()).Msg("failed to close session")
		}
		return nil
	})
	r.log.Info().Int("sessions", len(players)).Msg("all sessions closed")
}

func (r *Registry) snapshot() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// release drops p from the map if it is still the registered player.
func (r *Registry) release(p *Player) {
	r.mu.Lock()
	if cur, ok := r.players[p.GuildID()]; ok && cur == p {
		delete(r.players, p.GuildID())
	}
	r.mu.Unlock()
	r.disarmIdle(p)
}

// OnTrackEnd routes a track end event to the guild's player.
func (r *Registry) OnTrackEnd(ctx context.Context, guildID, encoded, reason string) {
	if p := r.Get(guildID); p != nil {
		p.HandleTrackEnd(ctx, encoded, EndReason(reason))
	}
}

// OnPlayerUpdate routes a position update to the guild's player.
func (r *Registry) OnPlayerUpdate(_ context.Context, guildID string, position time.Duration) {
	if p := r.Get(guildID); p != nil {
		p.HandlePlayerUpdate(position)
	}
}

// OnNodeReady replays every active track when the node came back without
// resuming its previous session.
func (r *Registry) OnNodeReady(ctx context.Context, node string, resumed bool) {
	r.log.Info().Str("node", node).Bool("resumed", resumed).Msg("audio node ready")
	if resumed {
		return
	}
	_ = util.Parallel(ctx, r.snapshot(), closeWorkers, func(ctx context.Context, p *Player) error {
		if err := p.Replay(ctx); err != nil {
			r.log.Warn().Err(err).Str("guild", p.GuildID()).Msg("failed to replay track")
		}
		return nil
	})
}

// Voice gateway close codes that mean the bot is no longer in the channel.
const (
	voiceCloseDisconnected = 4014
	voiceCloseSessionGone  = 4006
)

// OnVoiceClosed disconnects the player when Discord dropped the bot from voice.
func (r *Registry) OnVoiceClosed(ctx context.Context, guildID string, code int, byRemote bool) {
	r.log.Warn().Str("guild", guildID).Int("code", code).Bool("by_remote", byRemote).Msg("voice connection closed")
	if code != voiceCloseDisconnected && code != voiceCloseSessionGone {
		return
	}
	if err := r.Remove(ctx, guildID); err != nil {
		r.log.Warn().Err(err).Str("guild", guildID).Msg("failed to remove session")
	}
}

func idleJobName(p *Player) string { return "idle:" + p.GuildID() + ":" + p.ID() }

func (r *Registry) stateChanged(p *Player, s State) {
	switch s {
	case StateIdle:
		r.armIdle(p)
	case StatePlaying, StateDisconnected:
		r.disarmIdle(p)
	}
}

func (r *Registry) armIdle(p *Player) {
	if r.cfg.IdleTimeout <= 0 {
		return
	}
	err := r.jobs.Restart(idleJobName(p), r.cfg.IdleTimeout, func(ctx context.Context) error {
		closed, err := p.Expire(ctx)
		if closed {
			r.log.Info().Str("guild", p.GuildID()).Msg("left voice after inactivity")
		}
		return err
	})
	if err != nil {
		r.log.Warn().Err(err).Str("guild", p.GuildID()).Msg("failed to arm idle timer")
	}
}

func (r *Registry) disarmIdle(p *Player) {
	if name := idleJobName(p); r.jobs.Running(name) {
		_ = r.jobs.Stop(name)
	}
}
