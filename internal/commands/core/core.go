// Package core holds the bot's informational commands.
package core

import (
	"time"

	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
)

// History reads the guild's audit trail.
type History interface {
	FetchCommandHistory(guildID string) ([]storage.CommandHistoryRecord, error)
}

// Jobs lists background jobs such as idle timers and the node connection.
type Jobs interface {
	List() []string
	Due(name string) (time.Time, bool)
	Status() string
}

// Store reports on the persistent store.
type Store interface {
	Stats() map[string]any
}

// Deps is what the core commands read from the running bot. Nil fields
// are reported as unavailable.
type Deps struct {
	Prefix   string
	Latency  func() time.Duration
	History  History
	Jobs     Jobs
	Store    Store
	Sessions func() int
}

// Commands returns the core commands. help lists everything in reg,
// including itself.
func Commands(reg *cmd.Registry, deps Deps) []cmd.Command {
	return []cmd.Command{
		&PingCommand{latency: deps.Latency},
		&HelpCommand{registry: reg, prefix: deps.Prefix},
		&LogCommand{history: deps.History},
		&StatsCommand{jobs: deps.Jobs, store: deps.Store, sessions: deps.Sessions, now: time.Now},
	}
}
