// Package discord connects Bella to the Discord gateway: message and member
// events, prefix commands and moderation.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"bella/internal/chat"
	"bella/internal/config"
	"bella/internal/mind"
	"bella/pkg/cmd"
)

// Chat answers addressed messages.
type Chat interface {
	Handle(ctx context.Context, msg chat.Message, out chat.Responder) error
	Imagine(ctx context.Context, userID, prompt string, out chat.Responder) error
}

// Bot is the Discord adapter.
type Bot struct {
	cfg      *config.Config
	dg       *discordgo.Session
	api      API
	store    *mind.Store
	chat     Chat
	router   *chat.Router
	perms    *Permissions
	registry *cmd.Registry
	log      *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	botID string
	ctx   context.Context
}

// New creates the session and wires handlers. The gateway is opened by Run.
func New(cfg *config.Config, store *mind.Store, c Chat, logger *slog.Logger) (*Bot, error) {
	if cfg.DiscordToken == "" {
		return nil, errors.New("discord token is not set")
	}
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers

	b := newBot(cfg, dg, store, c, logger)
	b.dg = dg
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onGuildMemberAdd)
	dg.AddHandler(b.onGuildUpdate)
	return b, nil
}

func newBot(cfg *config.Config, api API, store *mind.Store, c Chat, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("logger", "discord")
	b := &Bot{
		cfg:    cfg,
		api:    api,
		store:  store,
		chat:   c,
		router: chat.NewRouter(cfg.BotNames),
		perms:  NewPermissions(api, cfg.OwnerCacheTTL, log),
		log:    log,
		now:    time.Now,
		ctx:    context.Background(),
	}
	b.registry = b.buildRegistry()
	return b
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) runContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bot) selfID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.botID
}

func (b *Bot) setSelfID(id string) {
	b.mu.Lock()
	b.botID = id
	b.mu.Unlock()
}
