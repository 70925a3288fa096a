package soundcloud

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/sources"
)

const SourceSoundCloud string = sources.SourceSoundCloud

const searchPrefix = "scsearch:"

type SoundCloudSource struct{}

func New() *SoundCloudSource {
	return &SoundCloudSource{}
}

func (s *SoundCloudSource) Match(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "soundcloud.com" || host == "m.soundcloud.com" || host == "on.soundcloud.com"
}

func (s *SoundCloudSource) Identifier(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty " + SourceSoundCloud + " query")
	}

	// if it's a url, just return it as-is
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if !s.Match(input) {
			return "", errors.New("input does not match selected source: " + SourceSoundCloud)
		}
		return input, nil
	}

	return searchPrefix + input, nil
}

func (s *SoundCloudSource) SourceName() string {
	return SourceSoundCloud
}

func (s *SoundCloudSource) Searchable() bool {
	return true
}
