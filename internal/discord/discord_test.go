package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bella/internal/chat"
	"bella/internal/config"
	"bella/internal/mind"
)

type call struct {
	op     string
	guild  string
	user   string
	reason string
	until  time.Time
}

type fakeAPI struct {
	mu          sync.Mutex
	sent        []string
	files       []string
	calls       []call
	guildLookup int
	modErr      error
}

func (f *fakeAPI) ChannelMessageSend(_ string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range data.Files {
		f.files = append(f.files, file.Name)
	}
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) GuildBanCreateWithReason(guildID, userID, reason string, _ int, _ ...discordgo.RequestOption) error {
	f.record(call{op: "ban", guild: guildID, user: userID, reason: reason})
	return f.modErr
}

func (f *fakeAPI) GuildMemberDeleteWithReason(guildID, userID, reason string, _ ...discordgo.RequestOption) error {
	f.record(call{op: "kick", guild: guildID, user: userID, reason: reason})
	return f.modErr
}

func (f *fakeAPI) GuildMemberTimeout(guildID, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	f.record(call{op: "timeout", guild: guildID, user: userID, until: *until})
	return f.modErr
}

func (f *fakeAPI) UserChannelPermissions(userID, _ string, _ ...discordgo.RequestOption) (int64, error) {
	if userID == "admin" {
		return discordgo.PermissionAdministrator, nil
	}
	return discordgo.PermissionSendMessages, nil
}

func (f *fakeAPI) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guildLookup++
	return &discordgo.Guild{ID: guildID, OwnerID: "owner"}, nil
}

func (f *fakeAPI) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

type fakeChat struct {
	msgs    []chat.Message
	prompts []string
}

func (f *fakeChat) Handle(ctx context.Context, msg chat.Message, out chat.Responder) error {
	f.msgs = append(f.msgs, msg)
	return out.Send(ctx, "reply to "+msg.Text)
}

func (f *fakeChat) Imagine(_ context.Context, _ string, prompt string, _ chat.Responder) error {
	f.prompts = append(f.prompts, prompt)
	return nil
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeChat, *mind.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	store, err := mind.Open(mind.Options{
		Path:      filepath.Join(dir, "bella_memory.json"),
		BackupDir: filepath.Join(dir, "memory_backups"),
		Now:       func() time.Time { return testNow },
	}, logger)
	require.NoError(t, err)

	api := &fakeAPI{}
	fc := &fakeChat{}
	cfg := &config.Config{CommandPrefix: "!", BotNames: []string{"bella", "bellaa"}, OwnerCacheTTL: time.Minute}
	b := newBot(cfg, api, store, fc, logger)
	b.now = func() time.Time { return testNow }
	b.setSelfID("bot")
	return b, api, fc, store
}

func message(author, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: author, Username: author},
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := "line one\nline two\nline three"
	assert.Equal(t, []string{"line one\nline two", "line three"}, splitMessage(text, 18))

	long := strings.Repeat("ب", 25)
	chunks := splitMessage(long, 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func TestMentionHelpers(t *testing.T) {
	id, ok := mentionedID("<@!12345> please")
	require.True(t, ok)
	assert.Equal(t, "12345", id)
	_, ok = mentionedID("nobody")
	assert.False(t, ok)

	assert.Equal(t, "hi there", stripMention("<@99> hi there", "99"))
	assert.Equal(t, "hi", stripMention("hi <@!99>", "99"))
}

func TestIsForbidden(t *testing.T) {
	assert.True(t, isForbidden(&discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions}}))
	assert.True(t, isForbidden(&discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}))
	assert.False(t, isForbidden(&discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}))
	assert.False(t, isForbidden(errors.New("boom")))
}

func TestOwnerLookupIsCached(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	assert.True(t, b.perms.IsOwner("g1", "owner"))
	assert.False(t, b.perms.IsOwner("g1", "someone"))
	assert.Equal(t, 1, api.guildLookup)

	b.perms.Forget("g1")
	assert.True(t, b.perms.IsOwner("g1", "owner"))
	assert.Equal(t, 2, api.guildLookup)
}

func TestAddressedMessagesGoToChat(t *testing.T) {
	b, api, fc, _ := newTestBot(t)

	b.handleMessage(context.Background(), message("u1", "Bella, how are you?"))
	b.handleMessage(context.Background(), message("u1", "just chatting with friends"))
	mentioned := message("owner", "<@bot> hey")
	mentioned.Mentions = []*discordgo.User{{ID: "bot"}}
	b.handleMessage(context.Background(), mentioned)
	botMsg := message("other-bot", "bella hi")
	botMsg.Author.Bot = true
	b.handleMessage(context.Background(), botMsg)

	require.Len(t, fc.msgs, 2)
	assert.Equal(t, ", how are you?", fc.msgs[0].Text)
	assert.False(t, fc.msgs[0].IsOwner)
	assert.Equal(t, "hey", fc.msgs[1].Text)
	assert.True(t, fc.msgs[1].IsOwner)
	assert.Equal(t, []string{"reply to , how are you?", "reply to hey"}, api.sent)
}

func TestOwnerBanPersistsRule(t *testing.T) {
	b, api, _, store := newTestBot(t)

	b.handleMessage(context.Background(), message("owner", "!ban <@42> spamming"))

	require.Len(t, api.calls, 1)
	assert.Equal(t, call{op: "ban", guild: "g1", user: "42", reason: "spamming"}, api.calls[0])
	rule, ok := store.Punishment("42")
	require.True(t, ok)
	assert.Equal(t, mind.PunishBan, rule.Type)
	assert.Equal(t, []string{"As you wish, my owner! <@42> has been permanently banned and will be banned again if they try to return! 💖"}, api.sent)
	assert.Equal(t, 1, store.Document().Analytics.CommandUsage["ban"])
}

func TestAdminKickDoesNotPersist(t *testing.T) {
	b, api, _, store := newTestBot(t)

	b.handleMessage(context.Background(), message("admin", "!kick <@42>"))

	require.Len(t, api.calls, 1)
	assert.Equal(t, "kick", api.calls[0].op)
	_, ok := store.Punishment("42")
	assert.False(t, ok)
	assert.Equal(t, []string{"<@42> has been kicked. Reason: None"}, api.sent)
}

func TestModerationRefusedForMembers(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleMessage(context.Background(), message("u1", "!timeout <@42> 10"))
	assert.Empty(t, api.calls)
	assert.Equal(t, []string{"Only my owner and admins can use this command! 😤"}, api.sent)
}

func TestOwnerTimeoutForbidden(t *testing.T) {
	b, api, _, store := newTestBot(t)
	api.modErr = &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions}}

	b.handleMessage(context.Background(), message("owner", "!timeout <@42> 10"))

	require.Len(t, api.calls, 1)
	assert.Equal(t, testNow.Add(10*time.Minute), api.calls[0].until)
	rule, ok := store.Punishment("42")
	require.True(t, ok, "the owner's rule is kept even when Discord refuses")
	assert.Equal(t, 10, rule.Minutes())
	assert.Equal(t, []string{"I don't have the server permissions to do this, my beloved owner! 😢"}, api.sent)
}

func TestUsageAndHelp(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleMessage(context.Background(), message("owner", "!timeout <@42> soon"))
	b.handleMessage(context.Background(), message("u1", "!help"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, "Usage: !timeout @user <minutes>", api.sent[0])
	assert.Contains(t, api.sent[1], "!ban @user [reason] - ")
	assert.Contains(t, api.sent[1], "!clear_memory - Wipe Bella's memory (owner)")
}

func TestTimeoutRejectsMoreThanTwentyEightDays(t *testing.T) {
	b, api, _, store := newTestBot(t)
	b.handleMessage(context.Background(), message("owner", "!timeout <@42> 40321"))

	assert.Equal(t, []string{"Usage: !timeout @user <minutes>"}, api.sent)
	assert.Empty(t, api.calls)
	_, ok := store.Punishment("42")
	assert.False(t, ok)

	b.handleMessage(context.Background(), message("owner", "!timeout <@42> 40320"))
	require.Len(t, api.calls, 1)
	assert.Equal(t, testNow.Add(40320*time.Minute), api.calls[0].until)
}

func TestForgiveAndClearMemory(t *testing.T) {
	b, api, _, store := newTestBot(t)
	require.NoError(t, store.SetPunishment("42", mind.PunishKick, 0))

	b.handleMessage(context.Background(), message("u1", "!forgive <@42>"))
	b.handleMessage(context.Background(), message("owner", "!forgive <@42>"))
	_, ok := store.Punishment("42")
	assert.False(t, ok)

	b.handleMessage(context.Background(), message("owner", "!clear_memory"))
	assert.Equal(t, []string{
		"Only my owner can forgive punishments! 😤",
		"As you wish, my owner! I will stop punishing <@42>. 💝",
		"My memory has been completely cleared, my beloved owner! 💝",
	}, api.sent)
	assert.Empty(t, store.Document().PunishmentRules)
}

func TestMemoryCommands(t *testing.T) {
	b, api, fc, store := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, message("owner", "!behave <@7> be nice and kind to them"))
	b.handleMessage(ctx, message("owner", "!mood angry 9 everyone is annoying"))
	b.handleMessage(ctx, message("owner", "!rep <@7> down 2"))
	b.handleMessage(ctx, message("owner", "!command temp speak arabic today"))
	b.handleMessage(ctx, message("u1", "!remember I love cats"))
	b.handleMessage(ctx, message("u1", "!callme Sara"))
	b.handleMessage(ctx, message("u1", "!prefer like pizza"))
	b.handleMessage(ctx, message("u1", "!imagine a castle in the clouds"))
	b.handleMessage(ctx, message("u1", "!mood happy 5 hi"))

	assert.Equal(t, "friendly", store.BehaviorType("7"))
	cur, ok := store.CurrentEmotion()
	require.True(t, ok)
	assert.Equal(t, 9, cur.Intensity)
	assert.Equal(t, -2, store.Reputation("7"))
	assert.Contains(t, store.ActiveOwnerCommandsSummary(), "- [temporary] speak arabic today")
	assert.Equal(t, "Sara", store.UserName("u1"))
	u, err := store.User("u1")
	require.NoError(t, err)
	require.Len(t, u.RememberedFacts, 1)
	assert.Equal(t, "I love cats", u.RememberedFacts[0].Fact)
	assert.Equal(t, "pizza", u.Preferences["like"])
	assert.Equal(t, []string{"a castle in the clouds"}, fc.prompts)
	assert.Equal(t, "Only my owner can do that! 😤", api.sent[len(api.sent)-1])
}

func TestMemberJoinEnforcesPunishment(t *testing.T) {
	b, api, _, store := newTestBot(t)
	require.NoError(t, store.SetPunishment("5", mind.PunishTimeout, 15))
	require.NoError(t, store.SetPunishment("6", mind.PunishBan, 0))

	b.enforcePunishment("g1", "5")
	b.enforcePunishment("g1", "6")
	b.enforcePunishment("g1", "7")

	require.Len(t, api.calls, 2)
	assert.Equal(t, call{op: "timeout", guild: "g1", user: "5", until: testNow.Add(15 * time.Minute)}, api.calls[0])
	assert.Equal(t, call{op: "ban", guild: "g1", user: "6", reason: autoBanReason}, api.calls[1])
}

func TestHandlerRecoversFromPanic(t *testing.T) {
	b, api, _, store := newTestBot(t)
	b.chat = panicChat{}

	assert.NotPanics(t, func() {
		b.handleMessage(context.Background(), message("u1", "bella hi"))
	})
	assert.Equal(t, []string{apology}, api.sent)
	assert.Len(t, store.Document().Analytics.ErrorLogs, 1)
}

type panicChat struct{}

func (panicChat) Handle(context.Context, chat.Message, chat.Responder) error { panic("nil map") }
func (panicChat) Imagine(context.Context, string, string, chat.Responder) error {
	return nil
}
