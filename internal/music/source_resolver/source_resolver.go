// Package source_resolver maps user input to an identifier the audio node
// understands and loads the matching tracks.
package source_resolver

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/internal/music/sources/radio"
	"github.com/keshon/domme-music/internal/music/sources/soundcloud"
	"github.com/keshon/domme-music/internal/music/sources/youtube"
)

var (
	ErrUnknownSource      = errors.New("unknown source")
	ErrSourceMismatch     = errors.New("input does not match selected source")
	ErrSearchNotSupported = errors.New("title search is not supported by this source")
)

// Loader fetches tracks for a node identifier such as a URL or "ytsearch:...".
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) ([]sources.Track, error)
}

type Config struct {
	DefaultSource string
	CacheEnabled  bool
	CacheSize     int
	CacheTTL      time.Duration
	Logger        zerolog.Logger
}

type SourceResolver struct {
	Sources map[string]sources.Source

	loader        Loader
	defaultSource string
	cache         *expirable.LRU[string, []sources.Track]
	group         singleflight.Group
	log           zerolog.Logger
}

func New(loader Loader, cfg Config) *SourceResolver {
	youtubeSource := youtube.New()
	soundcloudSource := soundcloud.New()
	radioSource := radio.New()

	r := &SourceResolver{
		Sources: map[string]sources.Source{
			youtubeSource.SourceName():    youtubeSource,
			soundcloudSource.SourceName(): soundcloudSource,
			radioSource.SourceName():      radioSource,
		},
		loader:        loader,
		defaultSource: cfg.DefaultSource,
		log:           cfg.Logger.With().Str("component", "resolver").Logger(),
	}
	if src, ok := r.Sources[r.defaultSource]; !ok || !src.Searchable() {
		r.defaultSource = sources.SourceYouTube
	}
	if cfg.CacheEnabled && cfg.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, []sources.Track](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return r
}

// Resolve auto-detects the source of query and loads its tracks. An empty
// result is not an error.
func (r *SourceResolver) Resolve(ctx context.Context, query string) ([]sources.Track, error) {
	return r.ResolveFrom(ctx, query, "")
}

// ResolveFrom loads query from selectedSource, or auto-detects when it is
// empty or "auto".
func (r *SourceResolver) ResolveFrom(ctx context.Context, query, selectedSource string) ([]sources.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	id, err := r.Identifier(query, selectedSource)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, id)
}

// Identifier picks a source for input and returns the node identifier.
func (r *SourceResolver) Identifier(input, selectedSource string) (string, error) {
	if selectedSource != "" && selectedSource != sources.SourceAuto {
		src, ok := r.Sources[selectedSource]
		if !ok {
			return "", errors.Wrapf(ErrUnknownSource, "%q", selectedSource)
		}
		if !isURL(input) {
			if !src.Searchable() {
				return "", errors.Wrapf(ErrSearchNotSupported, "%s", selectedSource)
			}
			return src.Identifier(input)
		}
		if !src.Match(input) {
			return "", errors.Wrapf(ErrSourceMismatch, "%s", selectedSource)
		}
		return src.Identifier(input)
	}

	if !isURL(input) {
		return r.Sources[r.defaultSource].Identifier(input)
	}

	// radio matches any URL, so it is tried last
	for name, s := range r.Sources {
		if name == sources.SourceRadio {
			continue
		}
		if s.Match(input) {
			return s.Identifier(input)
		}
	}
	return r.Sources[sources.SourceRadio].Identifier(input)
}

func (r *SourceResolver) load(ctx context.Context, id string) ([]sources.Track, error) {
	if r.cache != nil {
		if tracks, ok := r.cache.Get(id); ok {
			r.log.Debug().Str("identifier", id).Int("tracks", len(tracks)).Msg("cache hit")
			return tracks, nil
		}
	}

	v, err, shared := r.group.Do(id, func() (any, error) {
		tracks, err := r.loader.LoadTracks(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.cache != nil && len(tracks) > 0 {
			r.cache.Add(id, tracks)
		}
		return tracks, nil
	})
	if err != nil {
		r.log.Warn().Err(err).Str("identifier", id).Msg("failed to load tracks")
		return nil, err
	}
	tracks := v.([]sources.Track)
	r.log.Debug().Str("identifier", id).Int("tracks", len(tracks)).Bool("shared", shared).Msg("loaded tracks")
	// callers may keep the slice; hand out copies
	return append([]sources.Track(nil), tracks...), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
