package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"bella/internal/chat"
	"bella/internal/mind"
	"bella/pkg/cmd"
)

const (
	autoBanReason  = "Automatic ban based on owner's command"
	autoKickReason = "Automatic kick based on owner's command"
	apology        = "Sorry, something went wrong on my side 😔"
)

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.setSelfID(r.User.ID)
	b.log.Info("Bella is online", "user", r.User.String(), "guilds", len(r.Guilds))
}

func (b *Bot) onGuildUpdate(_ *discordgo.Session, g *discordgo.GuildUpdate) {
	b.perms.Forget(g.ID)
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	b.handleMessage(b.runContext(), m.Message)
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	b.enforcePunishment(m.GuildID, m.User.ID)
}

// handleMessage routes one message: prefix commands first, then addressed
// chat. A panic is contained to this message.
func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	out := channelResponder{api: b.api, channelID: m.ChannelID}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			b.log.Error("message handler panicked", "user", m.Author.ID, tint.Err(err))
			_ = b.store.LogError("message", m.Author.ID, err)
			_ = out.Send(ctx, apology)
		}
	}()

	if inv, ok := cmd.Parse(b.cfg.CommandPrefix, m.Content); ok {
		if c := b.registry.Get(inv.Name); c != nil {
			b.runCommand(ctx, c, inv, m, out)
			return
		}
	}

	self := b.selfID()
	mentioned := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == self {
			mentioned = true
			break
		}
	}
	text, ok := b.router.Addressed(stripMention(m.Content, self), mentioned)
	if !ok {
		return
	}

	msg := chat.Message{
		UserID:      m.Author.ID,
		DisplayName: displayName(m),
		Text:        text,
		IsOwner:     b.perms.IsOwner(m.GuildID, m.Author.ID),
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, chat.Attachment{Name: a.Filename, ContentType: a.ContentType, URL: a.URL})
	}
	// Handle reports failures to the channel itself.
	_ = b.chat.Handle(ctx, msg, out)
}

func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// enforcePunishment applies a stored rule to a member who (re)joins.
func (b *Bot) enforcePunishment(guildID, userID string) {
	rule, ok := b.store.Punishment(userID)
	if !ok {
		return
	}
	var err error
	switch rule.Type {
	case mind.PunishBan:
		err = b.api.GuildBanCreateWithReason(guildID, userID, autoBanReason, 0)
	case mind.PunishKick:
		err = b.api.GuildMemberDeleteWithReason(guildID, userID, autoKickReason)
	case mind.PunishTimeout:
		until := b.now().Add(time.Duration(rule.Minutes()) * time.Minute)
		err = b.api.GuildMemberTimeout(guildID, userID, &until)
	}
	log := b.log.With("guild", guildID, "user", userID, "punishment", rule.Type)
	switch {
	case err == nil:
		log.Info("punishment enforced on join")
	case isForbidden(err):
		log.Warn("missing permissions to enforce punishment", tint.Err(err))
	default:
		log.Error("failed to enforce punishment", tint.Err(err))
	}
}
