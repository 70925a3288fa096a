package commands

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// UserLimiter allows each user a burst of commands refilled over cooldown.
// Idle users are forgotten after cooldown.
type UserLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

func NewUserLimiter(perUser int, cooldown time.Duration) *UserLimiter {
	perUser = max(perUser, 1)
	return &UserLimiter{
		limit:    rate.Every(cooldown / time.Duration(perUser)),
		burst:    perUser,
		limiters: expirable.NewLRU[string, *rate.Limiter](4096, nil, cooldown),
	}
}

// Allow consumes one token for userID.
func (l *UserLimiter) Allow(userID string) bool {
	return l.at(userID, time.Now())
}

func (l *UserLimiter) at(userID string, now time.Time) bool {
	lim, ok := l.limiters.Get(userID)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// re-adding refreshes the idle expiry
	l.limiters.Add(userID, lim)
	return lim.AllowN(now, 1)
}
