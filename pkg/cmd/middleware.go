package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Middleware wraps a command (logging, permission checks, metrics).
type Middleware func(Command) Command

// Apply applies middlewares in order; the first in the list is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// PanicError is returned by Recover when a command panics.
type PanicError struct {
	Command string
	Value   any
	Stack   []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("command %s panicked: %v", p.Command, p.Value)
}

// Recover turns a panic into a *PanicError.
func Recover() Middleware {
	return func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Command: next.Name(), Value: r, Stack: debug.Stack()}
				}
			}()
			return next.Run(ctx, inv)
		})
	}
}

// Logging logs each run with its duration and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			start := time.Now()
			err := next.Run(ctx, inv)
			if err != nil {
				logger.Warn("command failed", "command", next.Name(), "duration", time.Since(start), tint.Err(err))
				return err
			}
			logger.Debug("command ran", "command", next.Name(), "duration", time.Since(start))
			return nil
		})
	}
}

// Observe calls fn with the command name before each run.
func Observe(fn func(name string)) Middleware {
	return func(next Command) Command {
		return Wrap(next, func(ctx context.Context, inv *Invocation) error {
			fn(next.Name())
			return next.Run(ctx, inv)
		})
	}
}
