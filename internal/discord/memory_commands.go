package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bella/pkg/cmd"
)

const onlyOwner = "Only my owner can do that! 😤"

func (b *Bot) cmdBehave(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, onlyOwner)
	}
	target, ok := mentionedID(inv.Arg(0))
	directive := inv.After(1)
	if !ok || directive == "" {
		return errUsage
	}
	rule, err := b.store.AddBehaviorRule(target, directive, true)
	if err != nil {
		return err
	}
	return ev.reply(ctx, "Got it, my owner! I'll be %s with %s. 💖", rule.BehaviorType, mention(target))
}

func (b *Bot) cmdMood(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, onlyOwner)
	}
	emotion := inv.Arg(0)
	intensity, err := strconv.Atoi(inv.Arg(1))
	thought := inv.After(2)
	if emotion == "" || err != nil {
		return errUsage
	}
	if err := b.store.AddEmotionalState(emotion, intensity, thought); err != nil {
		return ev.reply(ctx, "That mood doesn't work for me: %v", err)
	}
	return ev.reply(ctx, "Feeling %s now (%d/10). 😈", emotion, intensity)
}

func (b *Bot) cmdNote(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, onlyOwner)
	}
	target, ok := mentionedID(inv.Arg(0))
	note := inv.After(1)
	if !ok || note == "" {
		return errUsage
	}
	if err := b.store.AddUserNote(target, note, "owner command in "+ev.Message.ChannelID); err != nil {
		return err
	}
	return ev.reply(ctx, "Noted about %s. 📝", mention(target))
}

func (b *Bot) cmdOwnerCommand(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, onlyOwner)
	}
	permanent := true
	text := inv.Rest
	if strings.EqualFold(inv.Arg(0), "temp") {
		permanent = false
		text = inv.After(1)
	}
	if text == "" {
		return errUsage
	}
	if err := b.store.AddOwnerCommand(text, permanent); err != nil {
		return err
	}
	kind := "permanent"
	if !permanent {
		kind = "temporary"
	}
	return ev.reply(ctx, "Understood, my owner! %s order saved. 💝", strings.ToUpper(kind[:1])+kind[1:])
}

func (b *Bot) cmdInstruct(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if inv.Rest == "" {
		return errUsage
	}
	if err := b.store.AddInstruction(ev.userID(), inv.Rest, ev.IsOwner, ev.IsOwner); err != nil {
		return err
	}
	return ev.reply(ctx, "Fine, I'll keep that in mind. 😏")
}

func (b *Bot) cmdRep(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, onlyOwner)
	}
	target, ok := mentionedID(inv.Arg(0))
	if !ok {
		return errUsage
	}
	var action string
	switch strings.ToLower(inv.Arg(1)) {
	case "up", "+":
		action = "positive"
	case "down", "-":
		action = "negative"
	default:
		return errUsage
	}
	value := 1
	if s := inv.Arg(2); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return errUsage
		}
		value = n
	}
	score, err := b.store.AdjustReputation(target, action, value)
	if err != nil {
		return err
	}
	return ev.reply(ctx, "%s now has a reputation of %d.", mention(target), score)
}

func (b *Bot) cmdRelationship(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if !ev.IsOwner {
		return ev.reply(ctx, onlyOwner)
	}
	target, ok := mentionedID(inv.Arg(0))
	status := inv.After(1)
	if !ok || status == "" {
		return errUsage
	}
	if err := b.store.SetRelationship(target, status); err != nil {
		return err
	}
	return ev.reply(ctx, "%s and I are %s now.", mention(target), status)
}

func (b *Bot) cmdRemember(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if inv.Rest == "" {
		return errUsage
	}
	added, err := b.store.RememberFact(ev.userID(), inv.Rest)
	if err != nil {
		return err
	}
	if !added {
		return ev.reply(ctx, "I already knew that. 🙄")
	}
	return ev.reply(ctx, "I'll remember that. 😌")
}

func (b *Bot) cmdCallMe(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	if inv.Rest == "" {
		return errUsage
	}
	if err := b.store.SetUserName(ev.userID(), inv.Rest); err != nil {
		return err
	}
	return ev.reply(ctx, "Okay, %s. 😉", inv.Rest)
}

func (b *Bot) cmdPrefer(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	key := strings.ToLower(inv.Arg(0))
	value := inv.After(1)
	if key == "" || value == "" {
		return errUsage
	}
	if err := b.store.SetUserPreference(ev.userID(), key, value); err != nil {
		return err
	}
	return ev.reply(ctx, "Preference saved: %s = %s", key, value)
}

func (b *Bot) cmdStats(ctx context.Context, inv *cmd.Invocation) error {
	ev := eventOf(inv)
	target := ev.userID()
	if id, ok := mentionedID(inv.Arg(0)); ok {
		target = id
	}
	style, err := b.store.AnalyzeStyle(target)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Stats for %s**\n", b.store.UserName(target))
	sb.WriteString(b.store.UserAnalytics(target))
	fmt.Fprintf(&sb, "\nReputation: %d", b.store.Reputation(target))
	fmt.Fprintf(&sb, "\nRelationship: %s", b.store.Relationship(target))
	fmt.Fprintf(&sb, "\nStyle: %s", style.FormalityLevel)
	if len(style.ConversationTraits) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(style.ConversationTraits, ", "))
	}
	return ev.reply(ctx, sb.String())
}

func (b *Bot) cmdHelp(ctx context.Context, inv *cmd.Invocation) error {
	return eventOf(inv).reply(ctx, "**Commands**\n"+b.registry.Help(b.cfg.CommandPrefix))
}
