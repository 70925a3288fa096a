// Package cmd is a transport-agnostic command core: a command has a name, a
// description and Run(ctx, invocation). Adapters such as the Discord message
// handler parse input, look commands up and invoke them.
package cmd

import (
	"context"
	"strings"
)

// Invocation is the input a command runs with. Adapters put their own
// context (session, message, reply helpers) in Data.
type Invocation struct {
	Name string
	Args []string
	Data any
}

// Arg returns the i-th argument or "".
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Rest joins all arguments with single spaces.
func (inv *Invocation) Rest() string {
	return strings.Join(inv.Args, " ")
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Aliased commands answer to extra names.
type Aliased interface {
	Aliases() []string
}

// Categorized commands are grouped in help output.
type Categorized interface {
	Category() string
}

// Usage describes arguments, e.g. "<query>" or "[page]".
type Usage interface {
	Usage() string
}

// Parse splits a prefixed message into a lower-cased command name and its
// arguments. ok is false when content does not start with prefix or names
// no command.
func Parse(prefix, content string) (inv *Invocation, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return nil, false
	}
	return &Invocation{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}
