package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	inv, ok := Parse("!", "!Timeout <@42>   10  extra words")
	require.True(t, ok)
	assert.Equal(t, "timeout", inv.Name)
	assert.Equal(t, []string{"<@42>", "10", "extra", "words"}, inv.Args)
	assert.Equal(t, "<@42>   10  extra words", inv.Rest)
	assert.Equal(t, "10  extra words", inv.After(1))
	assert.Equal(t, "extra words", inv.After(2))
	assert.Equal(t, "", inv.After(9))
	assert.Equal(t, "", inv.Arg(9))

	for _, in := range []string{"hello", "!", "!   ", ""} {
		_, ok := Parse("!", in)
		assert.False(t, ok, in)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Func{CmdName: "kick", Desc: "Kick a member", Use: "kick @user [reason]"}))
	require.NoError(t, r.Register(&Func{CmdName: "help", Desc: "List commands"}))
	assert.Error(t, r.Register(&Func{CmdName: "KICK"}))

	assert.NotNil(t, r.Get("Kick"))
	assert.Nil(t, r.Get("ban"))
	assert.Equal(t, "!help - List commands\n!kick @user [reason] - Kick a member", r.Help("!"))
}

func TestMiddlewareOrderAndRecover(t *testing.T) {
	var trail []string
	tag := func(name string) Middleware {
		return func(next Command) Command {
			return Wrap(next, func(ctx context.Context, inv *Invocation) error {
				trail = append(trail, name)
				return next.Run(ctx, inv)
			})
		}
	}
	base := &Func{CmdName: "boom", Handler: func(context.Context, *Invocation) error {
		trail = append(trail, "run")
		panic("bad input")
	}}
	var seen []string
	c := Apply(base,
		Recover(),
		Logging(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Observe(func(n string) { seen = append(seen, n) }),
		tag("inner"),
	)

	err := c.Run(context.Background(), &Invocation{})
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Command)
	assert.True(t, strings.Contains(err.Error(), "bad input"))
	assert.Equal(t, []string{"inner", "run"}, trail)
	assert.Equal(t, []string{"boom"}, seen)
	assert.Same(t, Command(base), Root(c))
	assert.Equal(t, "boom", c.Usage())
}
