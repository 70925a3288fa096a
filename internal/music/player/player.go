package player

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/sources"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultVolume  = 50

	notifyBuffer  = 16
	notifyTimeout = 10 * time.Second
)

// Config holds the collaborators and limits of a new Player.
type Config struct {
	Session      Session
	Backend      Backend
	Resolver     Resolver
	Notifier     Notifier
	MaxQueueSize int
	Volume       int
	Timeout      time.Duration
	Logger       zerolog.Logger
	Clock        func() time.Time
	Shuffler     func(n int, swap func(i, j int))
}

// Player controls playback for one guild voice session. All operations are
// serialized by mu, including backend calls and node events.
type Player struct {
	mu sync.Mutex

	id       string
	session  Session
	backend  Backend
	resolver Resolver
	notifier Notifier
	log      zerolog.Logger

	queue   *queue.Queue
	history []sources.Track
	current *sources.Track
	state   State

	position  time.Duration
	resumedAt time.Time
	volume    int

	skipPending bool

	timeout time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	notes  chan Notification

	onState func(*Player, State)
	onClose func(*Player)
}

// New creates an idle player for an established voice session.
func New(cfg Config) *Player {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Volume < 0 || cfg.Volume > 100 {
		cfg.Volume = DefaultVolume
	}

	var qopts []queue.Option
	if cfg.Shuffler != nil {
		qopts = append(qopts, queue.WithShuffler(cfg.Shuffler))
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		id:       id,
		session:  cfg.Session,
		backend:  cfg.Backend,
		resolver: cfg.Resolver,
		notifier: cfg.Notifier,
		log: cfg.Logger.With().
			Str("component", "player").
			Str("guild", cfg.Session.GuildID).
			Str("player", id).
			Logger(),
		queue:   queue.New(cfg.MaxQueueSize, qopts...),
		history: make([]sources.Track, 0),
		state:   StateIdle,
		volume:  cfg.Volume,
		timeout: cfg.Timeout,
		now:     cfg.Clock,
		ctx:     ctx,
		cancel:  cancel,
		notes:   make(chan Notification, notifyBuffer),
	}

	go p.deliver()
	return p
}

func (p *Player) ID() string             { return p.id }
func (p *Player) GuildID() string        { return p.session.GuildID }
func (p *Player) VoiceChannelID() string { return p.session.VoiceChannelID }
func (p *Player) HomeChannelID() string  { return p.session.HomeChannelID }

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Play resolves query and starts it when idle, otherwise appends it.
func (p *Player) Play(ctx context.Context, query string) (PlayResult, error) {
	return p.play(ctx, query, false)
}

// PlayNext resolves query and puts it at the head of the queue. When idle it
// behaves like Play.
func (p *Player) PlayNext(ctx context.Context, query string) (PlayResult, error) {
	return p.play(ctx, query, true)
}

func (p *Player) play(ctx context.Context, query string, front bool) (PlayResult, error) {
	if p.State() == StateDisconnected {
		return PlayResult{}, ErrSessionClosed
	}

	// Resolution touches no player state, so it runs without the lock.
	track, err := p.resolveFirst(ctx, query)
	if err != nil {
		return PlayResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateDisconnected:
		return PlayResult{}, ErrSessionClosed

	case StateIdle:
		if p.queue.IsEmpty() {
			if err := p.startLocked(ctx, track, 0, true); err != nil {
				return PlayResult{}, err
			}
			p.log.Info().Str("track", track.DisplayTitle()).Msg("started playback")
			return PlayResult{Track: track, Started: true}, nil
		}

		// Leftover tracks from a failed advance play first.
		cp := p.queue.Checkpoint()
		if err := p.insertLocked(track, front); err != nil {
			return PlayResult{}, err
		}
		next, _ := p.queue.Advance()
		if err := p.startLocked(ctx, next, 0, true); err != nil {
			p.queue.Rollback(cp)
			return PlayResult{}, err
		}
		p.log.Info().Str("track", next.DisplayTitle()).Msg("started playback from queue")
		return PlayResult{Track: next, Started: true}, nil

	default:
		if err := p.insertLocked(track, front); err != nil {
			return PlayResult{}, err
		}
		pos := p.queue.Size()
		if front {
			pos = 1
		}
		p.log.Debug().Str("track", track.DisplayTitle()).Int("position", pos).Msg("queued track")
		return PlayResult{Track: track, Position: pos}, nil
	}
}

func (p *Player) insertLocked(track sources.Track, front bool) error {
	if front {
		return p.queue.EnqueueFront(track)
	}
	return p.queue.Enqueue(track)
}

func (p *Player) resolveFirst(ctx context.Context, query string) (sources.Track, error) {
	if p.resolver == nil {
		return sources.Track{}, resolverError(errors.New("no resolver configured"))
	}
	tracks, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return sources.Track{}, resolverError(err)
	}
	if len(tracks) == 0 {
		return sources.Track{}, errors.Wrapf(ErrNoResults, "%q", query)
	}
	return tracks[0], nil
}

// Skip stops the current track. The queue advances once, when the node
// reports the end of the stopped track.
func (p *Player) Skip(ctx context.Context) (sources.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTrackLocked(); err != nil {
		return sources.Track{}, err
	}
	if p.skipPending {
		return sources.Track{}, ErrSkipInProgress
	}

	skipped := *p.current
	if err := p.call(ctx, "stop", func(ctx context.Context) error {
		return p.backend.Stop(ctx, p.session.GuildID)
	}); err != nil {
		return sources.Track{}, err
	}
	p.skipPending = true
	p.log.Debug().Str("track", skipped.DisplayTitle()).Msg("skip requested")
	return skipped, nil
}

// Pause pauses the current track.
func (p *Player) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTrackLocked(); err != nil {
		return err
	}
	if p.state == StatePaused {
		return ErrAlreadyPaused
	}
	if err := p.call(ctx, "pause", func(ctx context.Context) error {
		return p.backend.Pause(ctx, p.session.GuildID)
	}); err != nil {
		return err
	}
	p.position = p.elapsedLocked()
	p.setStateLocked(StatePaused)
	return nil
}

// Resume continues a paused track.
func (p *Player) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return ErrSessionClosed
	}
	if p.state != StatePaused {
		return ErrNotPaused
	}
	if err := p.call(ctx, "resume", func(ctx context.Context) error {
		return p.backend.Resume(ctx, p.session.GuildID)
	}); err != nil {
		return err
	}
	p.resumedAt = p.now()
	p.setStateLocked(StatePlaying)
	return nil
}

// Seek moves to an absolute offset within the current track.
func (p *Player) Seek(ctx context.Context, offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTrackLocked(); err != nil {
		return err
	}
	if !p.current.Seekable() {
		return errors.Wrap(ErrInvalidSeekPosition, "track is not seekable")
	}
	if offset < 0 || offset > p.current.Duration {
		return errors.Wrapf(ErrInvalidSeekPosition, "%s is outside 0..%s", offset, p.current.Duration)
	}
	return p.seekLocked(ctx, offset)
}

// Rewind seeks back by d, stopping at the start of the track.
func (p *Player) Rewind(ctx context.Context, d time.Duration) (time.Duration, error) {
	return p.seekRelative(ctx, -d)
}

// Forward seeks ahead by d, stopping at the end of the track.
func (p *Player) Forward(ctx context.Context, d time.Duration) (time.Duration, error) {
	return p.seekRelative(ctx, d)
}

func (p *Player) seekRelative(ctx context.Context, delta time.Duration) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTrackLocked(); err != nil {
		return 0, err
	}
	if !p.current.Seekable() {
		return 0, errors.Wrap(ErrInvalidSeekPosition, "track is not seekable")
	}
	target := min(max(p.elapsedLocked()+delta, 0), p.current.Duration)
	if err := p.seekLocked(ctx, target); err != nil {
		return 0, err
	}
	return target, nil
}

func (p *Player) seekLocked(ctx context.Context, offset time.Duration) error {
	if err := p.call(ctx, "seek", func(ctx context.Context) error {
		return p.backend.Seek(ctx, p.session.GuildID, offset)
	}); err != nil {
		return err
	}
	p.position = offset
	p.resumedAt = p.now()
	return nil
}

// SetVolume sets the playback volume in percent.
func (p *Player) SetVolume(ctx context.Context, level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return ErrSessionClosed
	}
	if level < 0 || level > 100 {
		return errors.Wrapf(ErrInvalidVolume, "got %d", level)
	}
	if err := p.call(ctx, "volume", func(ctx context.Context) error {
		return p.backend.SetVolume(ctx, p.session.GuildID, level)
	}); err != nil {
		return err
	}
	p.volume = level
	return nil
}

// Remove deletes the track at a 1-based queue position.
func (p *Player) Remove(position int) (sources.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return sources.Track{}, ErrSessionClosed
	}
	return p.queue.RemoveAt(position)
}

// Clear empties the queue and returns how many tracks were dropped.
func (p *Player) Clear() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return 0, ErrSessionClosed
	}
	n := p.queue.Size()
	p.queue.Clear()
	return n, nil
}

// Shuffle permutes the queued tracks and returns the queue size.
func (p *Player) Shuffle() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return 0, ErrSessionClosed
	}
	p.queue.Shuffle()
	return p.queue.Size(), nil
}

// ListQueue returns one page of the queue.
func (p *Player) ListQueue(page, pageSize int) (queue.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return queue.Page{}, ErrSessionClosed
	}
	return p.queue.Snapshot(page, pageSize)
}

// SetLoopMode changes how the next track is picked.
func (p *Player) SetLoopMode(mode queue.LoopMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return ErrSessionClosed
	}
	return p.queue.SetLoopMode(mode)
}

// Stop ends playback and drops the queue.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTrackLocked(); err != nil {
		return err
	}
	if err := p.call(ctx, "stop", func(ctx context.Context) error {
		return p.backend.Stop(ctx, p.session.GuildID)
	}); err != nil {
		return err
	}

	p.queue.Clear()
	p.queue.Forget()
	p.history = p.history[:0]
	p.current = nil
	p.position = 0
	p.skipPending = false
	p.setStateLocked(StateIdle)
	p.log.Info().Msg("playback stopped")
	return nil
}

// Disconnect tears the session down. In-flight backend requests are
// cancelled and the player can never be used again.
func (p *Player) Disconnect(ctx context.Context) error {
	p.cancel()

	p.mu.Lock()
	if p.state == StateDisconnected {
		p.mu.Unlock()
		return ErrSessionClosed
	}
	err := p.closeLocked(ctx)
	p.mu.Unlock()

	p.fireClose()
	return err
}

// Expire disconnects the player only if it is still idle. It reports
// whether the player was closed.
func (p *Player) Expire(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return false, nil
	}
	p.cancel()
	p.emitLocked(Notification{Kind: NotifyIdleDisconnect, GuildID: p.session.GuildID})
	err := p.closeLocked(ctx)
	p.mu.Unlock()

	p.fireClose()
	return true, err
}

func (p *Player) closeLocked(ctx context.Context) error {
	p.setStateLocked(StateDisconnected)
	p.queue.Clear()
	p.queue.Forget()
	p.history = nil
	p.current = nil
	p.skipPending = false
	close(p.notes)

	// The lifetime context is already cancelled; the node still has to be told.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	err := p.backend.Disconnect(dctx, p.session.GuildID)
	if err != nil {
		p.log.Warn().Err(err).Msg("backend disconnect failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return timeoutError(err, "disconnect")
		}
		return backendError(err, "disconnect")
	}
	p.log.Info().Msg("session closed")
	return nil
}

func (p *Player) fireClose() {
	if p.onClose != nil {
		p.onClose(p)
	}
}

// Status returns a snapshot of the player.
func (p *Player) Status() (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return Status{State: StateDisconnected}, ErrSessionClosed
	}

	st := Status{
		State:     p.state,
		Volume:    p.volume,
		Loop:      p.queue.LoopMode(),
		QueueSize: p.queue.Size(),
	}
	if p.current != nil {
		track := *p.current
		elapsed := p.elapsedLocked()
		st.Track = &track
		st.Elapsed = elapsed
		st.Remaining = max(track.Duration-elapsed, 0)
		st.Progress = ProgressBar(elapsed, track.Duration, BarWidth)
	}
	return st, nil
}

// HandleTrackEnd reacts to the node finishing a track. Events for a track
// other than the current one are ignored.
func (p *Player) HandleTrackEnd(ctx context.Context, encoded string, reason EndReason) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying && p.state != StatePaused {
		return
	}
	if encoded != "" && p.current.Encoded != "" && encoded != p.current.Encoded {
		p.log.Debug().Str("reason", string(reason)).Msg("ignoring end event for a stale track")
		return
	}

	skip := p.skipPending
	switch {
	case reason == EndFinished, reason == EndLoadFailed:
	case reason == EndStopped && skip:
	default:
		return
	}
	p.skipPending = false

	if reason == EndLoadFailed {
		p.log.Warn().Str("track", p.current.DisplayTitle()).Msg("track failed to load")
		p.dropFromHistoryLocked(*p.current)
	}
	p.advanceLocked(ctx, skip || reason == EndLoadFailed)
}

func (p *Player) advanceLocked(ctx context.Context, forced bool) {
	cp := p.queue.Checkpoint()
	history := slices.Clone(p.history)

	var (
		next   sources.Track
		ok     bool
		repeat bool
	)
	if forced {
		next, ok = p.queue.Advance()
	} else {
		repeat = p.queue.LoopMode() == queue.LoopCurrent
		next, ok = p.queue.DequeueNext()
	}
	if !ok && p.queue.LoopMode() == queue.LoopAll && len(p.history) > 0 {
		n := p.queue.Reseed(p.history)
		p.history = p.history[:0]
		p.log.Debug().Int("tracks", n).Msg("reseeded queue from history")
		next, ok = p.queue.Advance()
	}

	if !ok {
		p.current = nil
		p.position = 0
		p.setStateLocked(StateIdle)
		p.emitLocked(Notification{Kind: NotifyQueueFinished, GuildID: p.session.GuildID})
		p.log.Info().Msg("queue finished")
		return
	}

	if err := p.startLocked(ctx, next, 0, !repeat); err != nil {
		p.queue.Rollback(cp)
		p.history = history
		p.current = nil
		p.position = 0
		p.setStateLocked(StateIdle)
		p.emitLocked(Notification{Kind: NotifyTrackFailed, GuildID: p.session.GuildID, Track: next, Err: err})
		p.log.Error().Err(err).Str("track", next.DisplayTitle()).Msg("failed to start next track")
		return
	}

	p.emitLocked(Notification{
		Kind:      NotifyNowPlaying,
		GuildID:   p.session.GuildID,
		Track:     next,
		QueueSize: p.queue.Size(),
	})
}

// HandlePlayerUpdate syncs the position reported by the node.
func (p *Player) HandlePlayerUpdate(position time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || position < 0 {
		return
	}
	if p.current.Duration > 0 && position > p.current.Duration {
		position = p.current.Duration
	}
	p.position = position
	p.resumedAt = p.now()
}

// Replay starts the current track again at its elapsed position. Used after
// the node restarted and lost its players.
func (p *Player) Replay(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying && p.state != StatePaused {
		return nil
	}
	track := *p.current
	at := p.elapsedLocked()
	if !track.Seekable() {
		at = 0
	}
	if err := p.call(ctx, "play", func(ctx context.Context) error {
		return p.backend.Play(ctx, p.session.GuildID, track, at)
	}); err != nil {
		return err
	}
	p.skipPending = false
	p.position = at
	p.resumedAt = p.now()

	if p.state == StatePaused {
		return p.call(ctx, "pause", func(ctx context.Context) error {
			return p.backend.Pause(ctx, p.session.GuildID)
		})
	}
	return nil
}

// History returns the tracks played since the last loop-all reseed.
func (p *Player) History() []sources.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

func (p *Player) requireTrackLocked() error {
	switch p.state {
	case StateDisconnected:
		return ErrSessionClosed
	case StateIdle:
		return ErrNothingPlaying
	}
	return nil
}

// startLocked issues a backend play and commits the new current track only
// once the node accepted it.
func (p *Player) startLocked(ctx context.Context, track sources.Track, start time.Duration, record bool) error {
	if err := p.call(ctx, "play", func(ctx context.Context) error {
		return p.backend.Play(ctx, p.session.GuildID, track, start)
	}); err != nil {
		return err
	}

	p.current = &track
	p.position = start
	p.resumedAt = p.now()
	p.skipPending = false
	p.queue.MarkPlayed(track)
	if record {
		p.recordLocked(track)
	}
	p.setStateLocked(StatePlaying)
	return nil
}

func (p *Player) recordLocked(track sources.Track) {
	if limit := p.queue.MaxSize(); len(p.history) >= limit {
		p.history = slices.Delete(p.history, 0, len(p.history)-limit+1)
	}
	p.history = append(p.history, track)
}

// dropFromHistoryLocked removes the latest history entry for track, so a
// track that cannot be loaded is never reseeded under loop-all.
func (p *Player) dropFromHistoryLocked(track sources.Track) {
	for i := len(p.history) - 1; i >= 0; i-- {
		if p.history[i].Encoded == track.Encoded {
			p.history = slices.Delete(p.history, i, i+1)
			return
		}
	}
}

func (p *Player) elapsedLocked() time.Duration {
	pos := p.position
	if p.state == StatePlaying {
		pos += p.now().Sub(p.resumedAt)
	}
	if p.current != nil && p.current.Duration > 0 && pos > p.current.Duration {
		pos = p.current.Duration
	}
	return max(pos, 0)
}

func (p *Player) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.state = s
	if p.onState != nil {
		p.onState(p, s)
	}
}

// call runs a backend request bounded by the player timeout. The request is
// also cancelled when the player is disconnected.
func (p *Player) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if p.backend == nil {
		return backendError(errors.New("no backend configured"), op)
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	err := fn(cctx)
	if err == nil {
		return nil
	}

	switch {
	case p.ctx.Err() != nil:
		return errors.Wrapf(ErrSessionClosed, "backend %s aborted", op)
	case errors.Is(err, context.DeadlineExceeded):
		p.log.Warn().Err(err).Str("op", op).Msg("backend request timed out")
		return timeoutError(err, op)
	default:
		p.log.Warn().Err(err).Str("op", op).Msg("backend request failed")
		return backendError(err, op)
	}
}

// emitLocked queues a notification without blocking; it is dropped when the
// buffer is full.
func (p *Player) emitLocked(n Notification) {
	if p.state == StateDisconnected {
		return
	}
	select {
	case p.notes <- n:
	default:
		p.log.Warn().Stringer("kind", n.Kind).Msg("notification dropped (buffer full)")
	}
}

func (p *Player) deliver() {
	for n := range p.notes {
		if p.notifier == nil || p.session.HomeChannelID == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := p.notifier.Notify(ctx, p.session.HomeChannelID, n); err != nil {
			p.log.Warn().Err(err).Stringer("kind", n.Kind).Msg("failed to deliver notification")
		}
		cancel()
	}
}
