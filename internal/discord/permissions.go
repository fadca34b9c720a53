package discord

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/patrickmn/go-cache"
)

// Permissions answers who may run privileged commands. Guild owners are
// cached because every addressed message needs the answer.
type Permissions struct {
	api    API
	owners *cache.Cache
	log    *slog.Logger
}

// NewPermissions caches guild owners for ttl.
func NewPermissions(api API, ttl time.Duration, logger *slog.Logger) *Permissions {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Permissions{
		api:    api,
		owners: cache.New(ttl, 2*ttl),
		log:    logger,
	}
}

// GuildOwner returns the owner id of guildID.
func (p *Permissions) GuildOwner(guildID string) (string, error) {
	if v, ok := p.owners.Get(guildID); ok {
		return v.(string), nil
	}
	g, err := p.api.Guild(guildID)
	if err != nil {
		return "", err
	}
	p.owners.SetDefault(guildID, g.OwnerID)
	return g.OwnerID, nil
}

// IsOwner reports whether userID owns guildID. Lookup failures count as no.
func (p *Permissions) IsOwner(guildID, userID string) bool {
	if guildID == "" {
		return false
	}
	owner, err := p.GuildOwner(guildID)
	if err != nil {
		p.log.Warn("failed to resolve guild owner", "guild", guildID, tint.Err(err))
		return false
	}
	return owner == userID
}

// IsAdministrator reports whether userID holds Administrator in channelID.
func (p *Permissions) IsAdministrator(userID, channelID string) bool {
	perms, err := p.api.UserChannelPermissions(userID, channelID)
	if err != nil {
		p.log.Warn("failed to resolve permissions", "user", userID, "channel", channelID, tint.Err(err))
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// Forget drops the cached owner of guildID.
func (p *Permissions) Forget(guildID string) {
	p.owners.Delete(guildID)
}

// isForbidden reports whether err is Discord refusing for lack of permissions.
func isForbidden(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeMissingPermissions {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden
}
