package cmd

import "context"

// Func adapts a plain function to Command.
type Func struct {
	CmdName string
	Desc    string
	Use     string
	Handler func(ctx context.Context, inv *Invocation) error
}

func (f *Func) Name() string        { return f.CmdName }
func (f *Func) Description() string { return f.Desc }

// Usage falls back to the bare name.
func (f *Func) Usage() string {
	if f.Use == "" {
		return f.CmdName
	}
	return f.Use
}

func (f *Func) Run(ctx context.Context, inv *Invocation) error {
	return f.Handler(ctx, inv)
}
