package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"bella/internal/chat"
	"bella/internal/mind"
	"bella/pkg/cmd"
)

// Event is the Discord payload a command runs against.
type Event struct {
	Message *discordgo.Message
	Out     chat.Responder
	IsOwner bool
	IsAdmin bool
}

func (e *Event) userID() string { return e.Message.Author.ID }

func (e *Event) reply(ctx context.Context, format string, args ...any) error {
	if len(args) == 0 {
		return e.Out.Send(ctx, format)
	}
	return e.Out.Send(ctx, fmt.Sprintf(format, args...))
}

func eventOf(inv *cmd.Invocation) *Event {
	return inv.Data.(*Event)
}

// errUsage makes the command reply with its usage line.
var errUsage = errors.New("usage")

// maxTimeoutMinutes is the longest timeout Discord accepts (28 days).
const maxTimeoutMinutes = 28 * 24 * 60

const (
	onlyOwnerAndAdmins = "Only my owner and admins can use this command! 😤"
	ownerForbidden     = "I don't have the server permissions to do this, my beloved owner! 😢"
)

func (b *Bot) buildRegistry() *cmd.Registry {
	reg := cmd.NewRegistry()
	mws := []cmd.Middleware{
		cmd.Recover(),
		b.commandLog(),
		cmd.Logging(b.log),
		cmd.Observe(func(name string) {
			if err := b.store.RecordCommandUsage(name); err != nil {
				b.log.Warn("failed to record command usage", "command", name, tint.Err(err))
			}
		}),
	}
	for _, c := range b.commands() {
		reg.MustRegister(cmd.Apply(c, mws...))
	}
	return reg
}

func (b *Bot) runCommand(ctx context.Context, c cmd.Command, inv *cmd.Invocation, m *discordgo.Message, out chat.Responder) {
	ev := &Event{Message: m, Out: out}
	ev.IsOwner = b.perms.IsOwner(m.GuildID, m.Author.ID)
	ev.IsAdmin = ev.IsOwner || b.perms.IsAdministrator(m.Author.ID, m.ChannelID)
	inv.Data = ev

	err := c.Run(ctx, inv)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		_ = out.Send(ctx, "Usage: "+b.cfg.CommandPrefix+c.Usage())
	default:
		_ = b.store.LogError("command:"+c.Name(), m.Author.ID, err)
		_ = out.Send(ctx, "Error: "+err.Error())
	}
}

func (b *Bot) commands() []cmd.Command {
	return []cmd.Command{
		&cmd.Func{CmdName: "ban", Desc: "Ban a member; the owner's bans persist", Use: "ban @user [reason]", Handler: b.cmdBan},
		&cmd.Func{CmdName: "kick", Desc: "Kick a member; the owner's kicks persist", Use: "kick @user [reason]", Handler: b.cmdKick},
		&cmd.Func{CmdName: "timeout", Desc: "Time a member out; the owner's timeouts persist", Use: "timeout @user <minutes>", Handler: b.cmdTimeout},
		&cmd.Func{CmdName: "forgive", Desc: "Remove a persistent punishment (owner)", Use: "forgive @user", Handler: b.cmdForgive},
		&cmd.Func{CmdName: "clear_memory", Desc: "Wipe Bella's memory (owner)", Handler: b.cmdClearMemory},
		&cmd.Func{CmdName: "imagine", Desc: "Generate an image", Use: "imagine <prompt>", Handler: b.cmdImagine},
		&cmd.Func{CmdName: "behave", Desc: "Set how Bella treats someone (owner)", Use: "behave @user <directive>", Handler: b.cmdBehave},
		&cmd.Func{CmdName: "mood", Desc: "Set Bella's mood (owner)", Use: "mood <emotion> <1-10> <thought>", Handler: b.cmdMood},
		&cmd.Func{CmdName: "note", Desc: "Leave a note about someone (owner)", Use: "note @user <text>", Handler: b.cmdNote},
		&cmd.Func{CmdName: "command", Desc: "Give Bella a standing order (owner)", Use: "command [temp] <text>", Handler: b.cmdOwnerCommand},
		&cmd.Func{CmdName: "instruct", Desc: "Teach Bella how to answer you", Use: "instruct <text>", Handler: b.cmdInstruct},
		&cmd.Func{CmdName: "rep", Desc: "Adjust someone's reputation (owner)", Use: "rep @user up|down [n]", Handler: b.cmdRep},
		&cmd.Func{CmdName: "relationship", Desc: "Set Bella's relationship with someone (owner)", Use: "relationship @user <status>", Handler: b.cmdRelationship},
		&cmd.Func{CmdName: "remember", Desc: "Ask Bella to remember something about you", Use: "remember <fact>", Handler: b.cmdRemember},
		&cmd.Func{CmdName: "callme", Desc: "Tell Bella your name", Use: "callme <name>", Handler: b.cmdCallMe},
		&cmd.Func{CmdName: "prefer", Desc: "Tell Bella a preference", Use: "prefer <like|dislike|topic|style|language> <value>", Handler: b.cmdPrefer},
		&cmd.Func{CmdName: "stats", Desc: "Show engagement stats", Use: "stats [@user]", Handler: b.cmdStats},
		&cmd.Func{CmdName: "help", Desc: "List commands", Handler: b.cmdHelp},
	}
}

// moderation is shared by ban and kick: the owner's action is persisted as a
// rule before it is executed; administrators only execute.
func (b *Bot) moderation(ctx context.Context, inv *cmd.Invocation, kind string) error {
	ev := eventOf(inv)
	target, ok := mentionedID(inv.Arg(0))
	if !ok {
		return errUsage
	}
	reason := inv.After(1)
	guildID := ev.Message.GuildID

	execute := func() error {
		if kind == mind.PunishBan {
			return b.api.GuildBanCreateWithReason(guildID, target, reason, 0)
		}
		return b.api.GuildMemberDeleteWithReason(guildID, target, reason)
	}

	switch {
	case ev.IsOwner:
		if err := b.store.SetPunishment(target, kind, 0); err != nil {
			return err
		}
		if err := execute(); err != nil {
			if isForbidden(err) {
				return ev.reply(ctx, ownerForbidden)
			}
			return err
		}
		if kind == mind.PunishBan {
			return ev.reply(ctx, "As you wish, my owner! %s has been permanently banned and will be banned again if they try to return! 💖", mention(target))
		}
		return ev.reply(ctx, "As you wish, my owner! %s will be kicked every time they try to join! 💖", mention(target))

	case ev.IsAdmin:
		verb, past := "ban", "banned"
		if kind == mind.PunishKick {
			verb, past = "kick", "kicked"
		}
		if err := execute(); err != nil {
			if isForbidden(err) {
				return ev.reply(ctx, "I don't have permission to %s %s.", verb, mention(target))
			}
			return err
		}
		return ev.reply(ctx, "%s has been %s. Reason: %s", mention(target), past, reasonText(reason))
	}
	return ev.reply(ctx, onlyOwnerAndAdmins)
}

func reasonText(reason string) string {
	if reason == "" {
		return "None"
	}
	return reason
}

func (b *Bot) cmdBan(ctx context.Context, inv *cmd.Invocation) error {
	return b.moderation(ctx, inv, mind.PunishBan)
}

func (b *Bot) cmdKick(ctx context.Context, inv *cmd.Invocation) error {
	return b.moderation(ctx, inv, mind.PunishKick)
}

func (b *Bot) cmdTimeout(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	target, ok := mentionedID(inv.Arg(0))
	if !ok {
		return errUsage
	}
	minutes, err := strconv.Atoi(inv.Arg(1))
	if err != nil || minutes <= 0 || minutes > maxTimeoutMinutes {
		return errUsage
	}
	until := b.now().Add(time.Duration(minutes) * time.Minute)
	guildID := ev.Message.GuildID

	switch {
	case ev.IsOwner:
		if err := b.store.SetPunishment(target, mind.PunishTimeout, minutes); err != nil {
			return err
		}
		if err := b.api.GuildMemberTimeout(guildID, target, &until); err != nil {
			if isForbidden(err) {
				return ev.reply(ctx, ownerForbidden)
			}
			return err
		}
		return ev.reply(ctx, "Of course, my owner! %s will be timed out for %d minutes every time they speak! 💝", mention(target), minutes)

	case ev.IsAdmin:
		if err := b.api.GuildMemberTimeout(guildID, target, &until); err != nil {
			if isForbidden(err) {
				return ev.reply(ctx, "I don't have permission to timeout %s.", mention(target))
			}
			return err
		}
		return ev.reply(ctx, "%s has been timed out for %d minutes.", mention(target), minutes)
	}
	return ev.reply(ctx, onlyOwnerAndAdmins)
}

func (b *Bot) cmdForgive(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, "Only my owner can forgive punishments! 😤")
	}
	target, ok := mentionedID(inv.Arg(0))
	if !ok {
		return errUsage
	}
	if _, err := b.store.RemovePunishment(target); err != nil {
		return err
	}
	return ev.reply(ctx, "As you wish, my owner! I will stop punishing %s. 💝", mention(target))
}

func (b *Bot) cmdClearMemory(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, "Only my owner can clear my memory! 😤")
	}
	if err := b.store.Clear(); err != nil {
		return ev.reply(ctx, "Error clearing memory: %v", err)
	}
	return ev.reply(ctx, "My memory has been completely cleared, my beloved owner! 💝")
}

func (b *Bot) cmdImagine(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if inv.Rest == "" {
		return errUsage
	}
	if err := b.chat.Imagine(ctx, ev.userID(), inv.Rest, ev.Out); err != nil {
		b.log.Warn("imagine failed", "user", ev.userID(), tint.Err(err))
		return ev.reply(ctx, "There was an error generating the image 😔")
	}
	return nil
}
