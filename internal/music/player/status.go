package player

import (
	"strings"
	"time"

	"github.com/keshon/domme-music/pkg/util"
)

// BarWidth is the number of cells in a progress bar.
const BarWidth = 20

const (
	barFilled = "█"
	barEmpty  = "░"
)

// ProgressBar renders elapsed/duration as width cells. A zero duration
// renders an empty bar.
func ProgressBar(elapsed, duration time.Duration, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if duration > 0 {
		elapsed = min(max(elapsed, 0), duration)
		filled = int(int64(width) * int64(elapsed) / int64(duration))
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// Line formats the status as "bar m:ss/m:ss". Streams show only elapsed time.
func (s Status) Line() string {
	if s.Track == nil {
		return ""
	}
	if s.Track.IsStream || s.Track.Duration <= 0 {
		return "🔴 LIVE " + util.FormatDuration(s.Elapsed)
	}
	return "`" + s.Progress + "` " + util.FormatDuration(s.Elapsed) + "/" + util.FormatDuration(s.Track.Duration)
}
