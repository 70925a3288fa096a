package player

import (
	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/queue"
)

var (
	ErrNoResults           = errors.New("no results found")
	ErrNothingPlaying      = errors.New("nothing is playing")
	ErrAlreadyPaused       = errors.New("playback is already paused")
	ErrNotPaused           = errors.New("playback is not paused")
	ErrSessionClosed       = errors.New("session is closed")
	ErrNoSession           = errors.New("no active session in this server")
	ErrInvalidSeekPosition = errors.New("invalid seek position")
	ErrInvalidVolume       = errors.New("volume must be between 0 and 100")
	ErrSkipInProgress      = errors.New("a skip is already in progress")
	ErrUserNotInVoice      = errors.New("you must be in a voice channel")
	ErrConnectFailed       = errors.New("failed to connect to voice channel")
	ErrBackendUnavailable  = errors.New("audio backend unavailable")
	ErrBackendTimeout      = errors.New("audio backend timed out")
	ErrResolverUnavailable = errors.New("track search unavailable")
)

// Kind groups errors by how the command layer should report them.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindPrecondition
	KindCapacity
	KindBackend
	KindResolver
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindCapacity:
		return "capacity"
	case KindBackend:
		return "backend"
	case KindResolver:
		return "resolver"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.IsAny(err,
		ErrInvalidSeekPosition,
		ErrInvalidVolume,
		queue.ErrInvalidPosition,
		queue.ErrInvalidPage,
		queue.ErrInvalidLoopMode):
		return KindValidation
	case errors.IsAny(err,
		ErrNothingPlaying,
		ErrAlreadyPaused,
		ErrNotPaused,
		ErrSessionClosed,
		ErrNoSession,
		ErrSkipInProgress,
		ErrUserNotInVoice,
		ErrNoResults):
		return KindPrecondition
	case errors.Is(err, queue.ErrCapacityExceeded):
		return KindCapacity
	case errors.IsAny(err, ErrBackendUnavailable, ErrBackendTimeout, ErrConnectFailed):
		return KindBackend
	case errors.Is(err, ErrResolverUnavailable):
		return KindResolver
	default:
		return KindInternal
	}
}

// Retryable reports whether the user may simply try the same command again.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindBackend || k == KindResolver
}

const (
	hintBackend  = "The audio node did not respond. Try again in a moment."
	hintResolver = "Searching is unavailable right now. Try again in a moment."
)

func backendError(err error, op string) error {
	if errors.Is(err, ErrBackendTimeout) || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return errors.WithHint(
		errors.Mark(errors.Wrapf(err, "backend %s", op), ErrBackendUnavailable),
		hintBackend,
	)
}

func timeoutError(err error, op string) error {
	return errors.WithHint(
		errors.Mark(errors.Wrapf(err, "backend %s", op), ErrBackendTimeout),
		hintBackend,
	)
}

func resolverError(err error) error {
	if errors.Is(err, ErrNoResults) {
		return err
	}
	return errors.WithHint(
		errors.Mark(errors.Wrap(err, "resolve"), ErrResolverUnavailable),
		hintResolver,
	)
}
