package sources

import "time"

const (
	SourceAuto       = "auto"
	SourceYouTube    = "youtube"
	SourceSoundCloud = "soundcloud"
	SourceRadio      = "radio"
)

// Track is an immutable reference to a single playable item. It is passed
// and stored by value; Encoded is the audio node's opaque handle for it.
type Track struct {
	Title      string
	Author     string
	URI        string
	Duration   time.Duration
	ISRC       string
	Identifier string
	SourceName string
	IsStream   bool
	IsSeekable bool
	Encoded    string
}

// DisplayTitle returns the best human label for the track.
func (t Track) DisplayTitle() string {
	switch {
	case t.Title != "":
		return t.Title
	case t.URI != "":
		return t.URI
	default:
		return "Unknown track"
	}
}

// Seekable reports whether a position inside the track can be addressed.
func (t Track) Seekable() bool {
	return t.IsSeekable && !t.IsStream
}
