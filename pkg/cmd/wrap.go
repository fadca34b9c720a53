package cmd

import "context"

// Unwrappable is implemented by wrapped commands so adapters can reach the
// underlying command.
type Unwrappable interface {
	Command
	Unwrap() Command
}

// Wrapped runs RunFunc in place of the inner command's Run.
type Wrapped struct {
	Inner   Command
	RunFunc func(ctx context.Context, inv *Invocation) error
}

func (w *Wrapped) Name() string        { return w.Inner.Name() }
func (w *Wrapped) Description() string { return w.Inner.Description() }
func (w *Wrapped) Usage() string       { return w.Inner.Usage() }

func (w *Wrapped) Run(ctx context.Context, inv *Invocation) error {
	if w.RunFunc != nil {
		return w.RunFunc(ctx, inv)
	}
	return w.Inner.Run(ctx, inv)
}

// Unwrap returns the inner command.
func (w *Wrapped) Unwrap() Command { return w.Inner }

// Wrap returns a command that runs run instead of c.Run.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &Wrapped{Inner: c, RunFunc: run}
}

// Root unwraps c until the underlying command is reached.
func Root(c Command) Command {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
