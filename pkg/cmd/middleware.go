package cmd

// Middleware wraps a command, e.g. for logging or guild checks.
type Middleware func(Command) Command

// Apply wraps c in order, so the last middleware runs first.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}
