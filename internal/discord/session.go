package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// API is the slice of *discordgo.Session the bot uses.
type API interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

var _ API = (*discordgo.Session)(nil)
