package youtube

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/sources"
)

const SourceYouTube string = sources.SourceYouTube

const searchPrefix = "ytsearch:"

type YouTubeSource struct{}

func New() *YouTubeSource {
	return &YouTubeSource{}
}

func (y *YouTubeSource) Match(input string) bool {
	_, ok := parseYouTubeURL(input)
	return ok
}

func (y *YouTubeSource) Identifier(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty " + SourceYouTube + " query")
	}

	// video or playlist URL
	if isURL(input) {
		if !y.Match(input) {
			return "", errors.New("invalid YouTube URL format")
		}
		return canonicalURL(input), nil
	}

	// by title
	return searchPrefix + input, nil
}

func (y *YouTubeSource) SourceName() string {
	return SourceYouTube
}

func (y *YouTubeSource) Searchable() bool {
	return true
}
