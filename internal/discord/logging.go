package discord

import (
	"context"

	"bella/pkg/cmd"
)

// commandLog records who ran which command where.
func (b *Bot) commandLog() cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			if ev, ok := inv.Data.(*Event); ok {
				b.log.Info("command invoked",
					"command", next.Name(),
					"guild", ev.Message.GuildID,
					"channel", b.channelName(ev.Message.ChannelID),
					"user", ev.Message.Author.ID,
					"username", ev.Message.Author.Username,
					"owner", ev.IsOwner,
				)
			}
			return next.Run(ctx, inv)
		})
	}
}

// channelName resolves a channel name from the gateway state, falling back to
// the id.
func (b *Bot) channelName(channelID string) string {
	if b.dg == nil || b.dg.State == nil {
		return channelID
	}
	if ch, err := b.dg.State.Channel(channelID); err == nil && ch.Name != "" {
		return ch.Name
	}
	return channelID
}
