// Package cmd is a transport-agnostic command core: a command has a name, a
// one-line description and a usage string, and runs against an Invocation.
// Adapters decide how text becomes an Invocation and where replies go.
package cmd

import (
	"context"
	"strings"
)

// Invocation carries the parsed input. Data is adapter-owned (for Discord, the
// session and the triggering message).
type Invocation struct {
	Name string
	Args []string
	Rest string // everything after the command name, whitespace-trimmed
	Data any
}

// Arg returns the i-th argument or "".
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// After returns the raw text following the first n arguments.
func (inv *Invocation) After(n int) string {
	s := inv.Rest
	for i := 0; i < n && s != ""; i++ {
		s = strings.TrimSpace(s)
		if idx := strings.IndexAny(s, " \t\n"); idx >= 0 {
			s = s[idx:]
		} else {
			s = ""
		}
	}
	return strings.TrimSpace(s)
}

// Command is the contract every command implements.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Run(ctx context.Context, inv *Invocation) error
}

// Parse splits a prefixed line into an Invocation. ok is false when content
// does not start with prefix or names no command.
func Parse(prefix, content string) (*Invocation, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return nil, false
	}
	body := strings.TrimSpace(content[len(prefix):])
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, false
	}
	name := fields[0]
	return &Invocation{
		Name: strings.ToLower(name),
		Args: fields[1:],
		Rest: strings.TrimSpace(body[len(name):]),
	}, true
}
