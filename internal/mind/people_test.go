package mind

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIsCreatedLazily(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.NotContains(t, s.Document().Users, "u1")
	u, err := s.User("u1")
	require.NoError(t, err)
	assert.True(t, u.FirstSeen.Equal(t0))
	assert.Contains(t, s.Document().Users, "u1")
	assert.Equal(t, DefaultUserName, s.UserName("u1"))
}

func TestNamesAndFacts(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	require.NoError(t, s.SetUserName("u1", "Rami"))
	require.NoError(t, s.SetUserName("u1", "Rami"))
	assert.Equal(t, "Rami", s.UserName("u1"))

	added, err := s.RememberFact("u1", "likes cats")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.RememberFact("u1", "Likes Cats")
	require.NoError(t, err)
	assert.False(t, added)

	u, err := s.User("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rami"}, u.Nicknames)
	require.Len(t, u.RememberedFacts, 1)

	require.NoError(t, s.SetUserPreference("u1", "like", "tea"))
	require.NoError(t, s.SetUserPreference("u1", "style", "short"))
	doc := s.Document()
	assert.Equal(t, []string{"tea"}, doc.UserPreferences["u1"].Likes)
	assert.Equal(t, "short", doc.UserPreferences["u1"].ResponseStyle)
	assert.Equal(t, "tea", doc.Users["u1"].Preferences["like"])

	assert.Contains(t, s.AllUsersSummary(), "Rami (u1): relationship neutral; facts: likes cats")
}

func TestRelationshipHistoryIsCapped(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.Equal(t, "neutral", s.Relationship("u1"))
	for i, status := range []string{"friend", "rival", "friend", "best friend", "enemy", "friend", "crush"} {
		clk.Advance(time.Duration(i+1) * time.Minute)
		require.NoError(t, s.SetRelationship("u1", status))
	}
	assert.Equal(t, "crush", s.Relationship("u1"))
	rel := s.Document().Relationships["u1"]
	require.Len(t, rel.History, 5)
	assert.Equal(t, "friend", rel.History[0].Status)
	assert.Equal(t, "crush", rel.History[4].Status)
}

func TestTouchInteractionAveragesGaps(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	require.NoError(t, s.TouchInteraction("u1"))
	clk.Advance(10 * time.Second)
	require.NoError(t, s.TouchInteraction("u1"))
	clk.Advance(30 * time.Second)
	require.NoError(t, s.TouchInteraction("u1"))

	m, ok := s.Interaction("u1")
	require.True(t, ok)
	assert.Equal(t, 3, m.InteractionCount)
	assert.InDelta(t, 20.0, m.AverageResponseTime, 1e-9)
}

func TestUserContextSummaryShowsNewestThree(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.Empty(t, s.UserContextSummary("u1"))
	for _, n := range []string{"one", "two", "three", "four"} {
		require.NoError(t, s.AddUserNote("u1", n, ""))
	}
	assert.Equal(t, "Owner said: two\nOwner said: three\nOwner said: four", s.UserContextSummary("u1"))
}

func TestReputation(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	score, err := s.AdjustReputation("u1", "positive", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, score)
	score, err = s.AdjustReputation("u1", "negative", 5)
	require.NoError(t, err)
	assert.Equal(t, -2, score)

	_, err = s.AdjustReputation("u1", "sideways", 1)
	assert.Error(t, err)

	rep := s.Document().UserReputation["u1"]
	assert.Len(t, rep.History, 2)
	assert.Equal(t, 1, rep.Warnings)
}

func TestPersonality(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))
	assert.Equal(t, "neutral personality", s.Personality("u1"))

	for _, m := range []string{"please help", "why?", "how?", "ok"} {
		clk.Advance(time.Second)
		_, err := s.RecordConversation("u1", m, "ok", false)
		require.NoError(t, err)
	}
	assert.Equal(t, "neutral personality", s.Personality("u1"))

	clk.Advance(time.Second)
	_, err := s.RecordConversation("u1", "thanks a lot", "ok", false)
	require.NoError(t, err)
	assert.Equal(t, "generally polite", s.Personality("u1"))
}

func TestRelevantPhraseBumpsUsage(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	_, err := s.RecordConversation("u1", "you are amazing", "aw", false)
	require.NoError(t, err)
	_, err = s.RecordConversation("u1", "hello, you idiot", "rude", false)
	require.NoError(t, err)

	phrase, ok := s.RelevantPhrase("a greeting for you")
	require.True(t, ok)
	assert.Equal(t, "hello, you idiot", phrase)

	_, ok = s.RelevantPhrase("nothing matches")
	assert.False(t, ok)

	phrases := s.MemorablePhrases()
	require.Len(t, phrases, 2)
	assert.Equal(t, 1, phrases[1].UsageCount)
	assert.NotNil(t, phrases[1].LastUsed)
}

func TestAnalyzeStyle(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	for _, m := range []string{"hey there friend", "hey you lol", "hi again buddy", "hello hello hello", "hey"} {
		clk.Advance(time.Second)
		_, err := s.RecordConversation("u1", m, "ok", false)
		require.NoError(t, err)
	}

	style, err := s.AnalyzeStyle("u1")
	require.NoError(t, err)
	assert.Equal(t, "informal", style.FormalityLevel)
	assert.Len(t, style.PreferredGreetings, 5)
	assert.Contains(t, style.ConversationTraits, "consistently_polite")
	assert.NotContains(t, style.ConversationTraits, "inquisitive")

	doc := s.Document()
	assert.Equal(t, "informal", doc.Users["u1"].ConversationStyle)
	assert.Equal(t, "informal", doc.ConversationStyles["u1"].FormalityLevel)
}

func TestAnalyticsCounters(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	require.NoError(t, s.RecordCommandUsage("ban"))
	require.NoError(t, s.RecordCommandUsage("ban"))
	require.NoError(t, s.RecordLatency("reply", 100*time.Millisecond))
	require.NoError(t, s.RecordLatency("reply", 300*time.Millisecond))
	for i := 0; i < 105; i++ {
		require.NoError(t, s.LogError("chat", "u1", errors.New("boom")))
	}
	require.NoError(t, s.LogError("chat", "u1", nil))

	doc := s.Document()
	assert.Equal(t, 2, doc.Analytics.CommandUsage["ban"])
	perf := doc.Analytics.PerformanceMetrics["reply"]
	assert.Equal(t, 2, perf.Count)
	assert.InDelta(t, 200.0, perf.AvgMillis, 1e-9)
	assert.InDelta(t, 300.0, perf.MaxMillis, 1e-9)
	assert.Len(t, doc.Analytics.ErrorLogs, 100)
}

func TestMediaInteractions(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	id, err := s.AddMediaInteraction("u1", MediaImages, MediaContext{Type: "generated", Prompt: "a cat"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = s.AddMediaInteraction("u1", "videos", MediaContext{})
	assert.Error(t, err)

	doc := s.Document()
	require.Len(t, doc.MediaInteractions.Images["u1"], 1)
	assert.Equal(t, "a cat", doc.MediaInteractions.Images["u1"][0].Context.Prompt)
	require.NotNil(t, doc.MediaInteractions.LastProcessed)
}

func TestSummaries(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.Equal(t, "No previous conversations.", s.ConversationSummary("u1"))
	assert.Equal(t, "No analytics available.", s.UserAnalytics("u1"))
	assert.Equal(t, "No active owner commands.", s.ActiveOwnerCommandsSummary())
	assert.Equal(t, "No behavior notes.", s.BehaviorSummary())

	_, err := s.RecordConversation("u1", "how are you?", "great", false)
	require.NoError(t, err)
	require.NoError(t, s.AddOwnerCommand("be kind to newcomers", true))
	require.NoError(t, s.AddOwnerCommand("talk about the event", false))
	require.NoError(t, s.AddBehaviorNote("stay playful"))

	assert.Equal(t, "User: how are you?\nBella: great", s.ConversationSummary("u1"))
	assert.True(t, strings.HasPrefix(s.UserAnalytics("u1"), "Total messages: 1\n"))
	assert.Equal(t, "- [permanent] be kind to newcomers\n- [temporary] talk about the event", s.ActiveOwnerCommandsSummary())
	assert.Equal(t, "- stay playful", s.BehaviorSummary())
}

func TestMaintainAndSchedule(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	clk.Advance(25 * time.Hour)
	res, err := s.Maintain()
	require.NoError(t, err)
	assert.True(t, res.SweepRan)
	assert.NotEmpty(t, res.Backup)

	sched, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	job, err := s.ScheduleMaintenance(sched, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory-maintenance", job.Name())

	_, err = s.ScheduleMaintenance(sched, 0)
	assert.Error(t, err)
}
