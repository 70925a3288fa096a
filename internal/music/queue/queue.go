// Package queue implements the bounded playback queue owned by a single
// player. It is not safe for concurrent use; the owning player serializes
// access.
package queue

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/sources"
)

// DefaultMaxSize bounds a queue created without an explicit capacity.
const DefaultMaxSize = 1000

var (
	ErrCapacityExceeded = errors.New("queue is full")
	ErrInvalidPosition  = errors.New("invalid queue position")
	ErrInvalidPage      = errors.New("invalid queue page")
	ErrInvalidLoopMode  = errors.New("invalid loop mode")
)

// LoopMode decides what DequeueNext returns once a track has been played.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopCurrent
	LoopAll
)

func (m LoopMode) String() string {
	switch m {
	case LoopOff:
		return "off"
	case LoopCurrent:
		return "track"
	case LoopAll:
		return "queue"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the recognized modes.
func (m LoopMode) Valid() bool {
	return m == LoopOff || m == LoopCurrent || m == LoopAll
}

// ParseLoopMode accepts the user-facing names of a loop mode.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "disable":
		return LoopOff, nil
	case "track", "current", "song", "one":
		return LoopCurrent, nil
	case "queue", "all":
		return LoopAll, nil
	default:
		return LoopOff, errors.Wrapf(ErrInvalidLoopMode, "%q", s)
	}
}

// Queue is an ordered, bounded list of tracks waiting to be played.
type Queue struct {
	tracks  []sources.Track
	maxSize int
	mode    LoopMode

	last    sources.Track
	hasLast bool

	shuffle func(n int, swap func(i, j int))
}

// Option configures a Queue.
type Option func(*Queue)

// WithShuffler replaces the permutation source, mainly for tests.
func WithShuffler(fn func(n int, swap func(i, j int))) Option {
	return func(q *Queue) {
		q.shuffle = fn
	}
}

// New creates an empty queue holding at most maxSize tracks.
func New(maxSize int, opts ...Option) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	q := &Queue{
		tracks:  make([]sources.Track, 0),
		maxSize: maxSize,
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a track to the end of the queue.
func (q *Queue) Enqueue(track sources.Track) error {
	if len(q.tracks) >= q.maxSize {
		return errors.Wrapf(ErrCapacityExceeded, "limit is %d tracks", q.maxSize)
	}
	q.tracks = append(q.tracks, track)
	return nil
}

// EnqueueFront inserts a track before the first queued one.
func (q *Queue) EnqueueFront(track sources.Track) error {
	if len(q.tracks) >= q.maxSize {
		return errors.Wrapf(ErrCapacityExceeded, "limit is %d tracks", q.maxSize)
	}
	q.tracks = slices.Insert(q.tracks, 0, track)
	return nil
}

// DequeueNext returns the track that should play next according to the loop
// mode. Under LoopCurrent the last dequeued track is returned again and the
// queue is not consumed. The boolean is false when nothing is available.
func (q *Queue) DequeueNext() (sources.Track, bool) {
	if q.mode == LoopCurrent && q.hasLast {
		return q.last, true
	}
	return q.Advance()
}

// Advance pops the head of the queue regardless of loop mode.
func (q *Queue) Advance() (sources.Track, bool) {
	if len(q.tracks) == 0 {
		return sources.Track{}, false
	}
	track := q.tracks[0]
	q.tracks[0] = sources.Track{}
	q.tracks = q.tracks[1:]
	q.last, q.hasLast = track, true
	return track, true
}

// MarkPlayed records track as the last dequeued one without touching the
// queued tracks. Used when a track starts playing without passing through
// the queue.
func (q *Queue) MarkPlayed(track sources.Track) {
	q.last, q.hasLast = track, true
}

// RemoveAt removes the track at the 1-based position and returns it.
func (q *Queue) RemoveAt(position int) (sources.Track, error) {
	if position < 1 || position > len(q.tracks) {
		return sources.Track{}, errors.Wrapf(ErrInvalidPosition, "position %d, queue has %d tracks", position, len(q.tracks))
	}
	track := q.tracks[position-1]
	q.tracks = slices.Delete(q.tracks, position-1, position)
	return track, nil
}

// Clear empties the queue. The last dequeued track is kept so a looping
// current track keeps playing.
func (q *Queue) Clear() {
	clear(q.tracks)
	q.tracks = q.tracks[:0]
}

// Forget drops the last dequeued track.
func (q *Queue) Forget() {
	q.last, q.hasLast = sources.Track{}, false
}

// Shuffle permutes the queued tracks (Fisher-Yates via rand.Shuffle).
func (q *Queue) Shuffle() {
	q.shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
}

// Reseed refills the queue with tracks in the given order, up to capacity.
// Returns the number of tracks added.
func (q *Queue) Reseed(tracks []sources.Track) int {
	added := 0
	for _, t := range tracks {
		if len(q.tracks) >= q.maxSize {
			break
		}
		q.tracks = append(q.tracks, t)
		added++
	}
	return added
}

func (q *Queue) Size() int     { return len(q.tracks) }
func (q *Queue) IsEmpty() bool { return len(q.tracks) == 0 }
func (q *Queue) MaxSize() int  { return q.maxSize }

// LoopMode returns the current loop mode.
func (q *Queue) LoopMode() LoopMode { return q.mode }

// SetLoopMode changes the loop mode; it applies from the next DequeueNext.
func (q *Queue) SetLoopMode(mode LoopMode) error {
	if !mode.Valid() {
		return errors.Wrapf(ErrInvalidLoopMode, "mode %d", int(mode))
	}
	q.mode = mode
	return nil
}

// Tracks returns a copy of all queued tracks in order.
func (q *Queue) Tracks() []sources.Track {
	return slices.Clone(q.tracks)
}

// Page is an order-preserving slice of the queue.
type Page struct {
	Number int
	Pages  int
	Total  int
	Start  int // 1-based position of the first track
	Tracks []sources.Track
}

// Snapshot returns the given 1-based page. Page 1 of an empty queue is
// valid and empty.
func (q *Queue) Snapshot(page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	total := len(q.tracks)
	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 || page > pages {
		return Page{}, errors.Wrapf(ErrInvalidPage, "page %d of %d", page, pages)
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	return Page{
		Number: page,
		Pages:  pages,
		Total:  total,
		Start:  start + 1,
		Tracks: slices.Clone(q.tracks[start:end]),
	}, nil
}

// Checkpoint captures the queue so a failed operation can be undone.
type Checkpoint struct {
	tracks  []sources.Track
	mode    LoopMode
	last    sources.Track
	hasLast bool
}

func (q *Queue) Checkpoint() Checkpoint {
	return Checkpoint{
		tracks:  slices.Clone(q.tracks),
		mode:    q.mode,
		last:    q.last,
		hasLast: q.hasLast,
	}
}

// Rollback restores the queue to a previous checkpoint.
func (q *Queue) Rollback(cp Checkpoint) {
	q.tracks = slices.Clone(cp.tracks)
	if q.tracks == nil {
		q.tracks = make([]sources.Track, 0)
	}
	q.mode = cp.mode
	q.last, q.hasLast = cp.last, cp.hasLast
}
