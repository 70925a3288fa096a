// Package radio handles direct HTTP audio streams (internet radio, raw files).
// The audio node's http source plays them; no search is available.
package radio

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/sources"
)

const SourceRadio = sources.SourceRadio

type RadioSource struct{}

func New() *RadioSource {
	return &RadioSource{}
}

func (r *RadioSource) Match(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *RadioSource) Identifier(input string) (string, error) {
	input = strings.TrimSpace(input)
	if !r.Match(input) {
		return "", errors.New("invalid radio URL: " + input)
	}
	return input, nil
}

func (r *RadioSource) SourceName() string {
	return SourceRadio
}

func (r *RadioSource) Searchable() bool {
	return false
}
