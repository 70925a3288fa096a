package cmd

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrDuplicateName is returned when a name or alias is already taken.
var ErrDuplicateName = errors.New("command name already registered")

// Registry stores commands by name and alias. It does not dispatch.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	names    map[string]string // name or alias -> name
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		names:    make(map[string]string),
	}
}

// Register adds c under its name and aliases, case-insensitively.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(c.Name())
	keys := []string{name}
	if a, ok := Root(c).(Aliased); ok {
		for _, alias := range a.Aliases() {
			keys = append(keys, strings.ToLower(alias))
		}
	}
	for _, k := range keys {
		if owner, taken := r.names[k]; taken {
			return errors.Wrapf(ErrDuplicateName, "%q (used by %s)", k, owner)
		}
	}

	r.commands[name] = c
	for _, k := range keys {
		r.names[k] = name
	}
	return nil
}

// MustRegister panics on a duplicate; use it for static command tables.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Get returns the command for a name or alias, or nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[r.names[strings.ToLower(name)]]
}

// GetAll returns all commands sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// ByCategory groups commands by Category(); uncategorized ones go under
// "General". Category names are returned sorted.
func (r *Registry) ByCategory() ([]string, map[string][]Command) {
	groups := make(map[string][]Command)
	for _, c := range r.GetAll() {
		cat := "General"
		if cc, ok := Root(c).(Categorized); ok && cc.Category() != "" {
			cat = cc.Category()
		}
		groups[cat] = append(groups[cat], c)
	}
	cats := make([]string, 0, len(groups))
	for k := range groups {
		cats = append(cats, k)
	}
	sort.Strings(cats)
	return cats, groups
}
