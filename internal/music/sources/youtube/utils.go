package youtube

import (
	"net/url"
	"strings"
)

var hosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

func parseYouTubeURL(input string) (*url.URL, bool) {
	s := strings.TrimSpace(input)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || !hosts[strings.ToLower(u.Hostname())] {
		return nil, false
	}
	return u, strings.Trim(u.Path, "/") != ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// videoID extracts the video of watch, short-link, shorts and live URLs.
func videoID(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		return path
	}
	if path == "watch" {
		return u.Query().Get("v")
	}
	for _, prefix := range []string{"shorts/", "live/", "embed/"} {
		if id, ok := strings.CutPrefix(path, prefix); ok {
			return id
		}
	}
	return ""
}

// canonicalURL drops tracking and playlist parameters from a single video
// URL so equal videos share a cache entry. Other URLs are returned as is.
func canonicalURL(raw string) string {
	u, ok := parseYouTubeURL(raw)
	if !ok {
		return raw
	}
	id := videoID(u)
	if id == "" {
		return raw
	}
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		return "https://youtu.be/" + id
	}
	host := strings.ToLower(u.Hostname())
	if host == "youtube.com" || host == "m.youtube.com" {
		host = "www.youtube.com"
	}
	return "https://" + host + "/watch?v=" + url.QueryEscape(id)
}
