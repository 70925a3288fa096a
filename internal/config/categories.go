package config

// Help categories, ordered by weight.
const (
	CategoryInfo     = "🕯️ Information"
	CategoryMusic    = "🎵 Music"
	CategoryQueue    = "📜 Queue"
	CategoryPlayback = "🎚️ Playback"
)

var CategoryWeights = map[string]int{
	CategoryInfo:     0,
	CategoryMusic:    10,
	CategoryQueue:    20,
	CategoryPlayback: 30,
}

// CategoryWeight orders unknown categories last.
func CategoryWeight(name string) int {
	if w, ok := CategoryWeights[name]; ok {
		return w
	}
	return 100
}
