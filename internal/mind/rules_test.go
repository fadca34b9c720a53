package mind

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bella/internal/lexicon"
)

func TestPunishmentKeepsOnlyLatestRule(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	steps := []struct {
		kind    string
		minutes int
	}{
		{PunishBan, 0},
		{PunishTimeout, 10},
		{PunishKick, 0},
		{PunishTimeout, 42},
	}
	for _, step := range steps {
		clk.Advance(time.Second)
		require.NoError(t, s.SetPunishment("u1", step.kind, step.minutes))

		got, ok := s.Punishment("u1")
		require.True(t, ok)
		assert.Equal(t, step.kind, got.Type)
		assert.True(t, got.Timestamp.Equal(clk.Now()))
		if step.kind == PunishTimeout {
			require.NotNil(t, got.Duration)
			assert.Equal(t, step.minutes, *got.Duration)
		} else {
			assert.Nil(t, got.Duration)
		}
	}

	removed, err := s.RemovePunishment("u1")
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok := s.Punishment("u1")
	assert.False(t, ok)

	removed, err = s.RemovePunishment("u1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSetPunishmentValidates(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.ErrorIs(t, s.SetPunishment("u1", PunishTimeout, 0), ErrInvalidPunishment)
	assert.ErrorIs(t, s.SetPunishment("u1", "mute", 5), ErrInvalidPunishment)
	_, ok := s.Punishment("u1")
	assert.False(t, ok)
}

func TestPunishmentMinutesDefault(t *testing.T) {
	assert.Equal(t, DefaultTimeoutMinutes, PunishmentRule{Type: PunishTimeout}.Minutes())
	d := 12
	assert.Equal(t, 12, PunishmentRule{Type: PunishTimeout, Duration: &d}.Minutes())
}

func TestInactivePunishmentIsHidden(t *testing.T) {
	clk := &fakeClock{t: t0}
	opts := testOptions(t.TempDir(), clk)
	writeDoc(t, opts.Path, map[string]any{
		"punishment_rules": map[string]any{
			"u1": map[string]any{"type": "ban", "active": false, "timestamp": t0},
		},
	})
	s := openTestStore(t, opts)

	_, ok := s.Punishment("u1")
	assert.False(t, ok)
	assert.Equal(t, "No active punishments.", s.ActivePunishmentsSummary())
}

func TestActivePunishmentsSummary(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))
	require.NoError(t, s.SetPunishment("b", PunishTimeout, 7))
	require.NoError(t, s.SetPunishment("a", PunishBan, 0))

	assert.Equal(t, "User a: ban\nUser b: timeout for 7 minutes", s.ActivePunishmentsSummary())
}

func TestBehaviorRuleExclusivity(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.Equal(t, lexicon.BehaviorNeutral, s.BehaviorType("u1"))

	r1, err := s.AddBehaviorRule("u1", "be nice to them", true)
	require.NoError(t, err)
	assert.Equal(t, lexicon.BehaviorFriendly, r1.BehaviorType)
	assert.Equal(t, lexicon.BehaviorFriendly, s.BehaviorType("u1"))

	clk.Advance(time.Minute)
	_, err = s.AddBehaviorRule("u1", "don't behave, be rude", true)
	require.NoError(t, err)

	rules := s.BehaviorRules("u1")
	require.Len(t, rules, 2)
	active := 0
	for _, r := range rules {
		if r.Active {
			active++
			assert.Equal(t, "don't behave, be rude", r.Behavior)
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, lexicon.BehaviorHostile, s.BehaviorType("u1"))
	assert.Equal(t, "- don't behave, be rude", s.BehaviorRulesSummary("u1"))
	assert.Equal(t, lexicon.BehaviorNeutral, s.BehaviorType("u2"))
}

func TestUnfilteredReplyGate(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	_, ok := s.UnfilteredReply("anything")
	assert.False(t, ok, "no state logged yet")

	require.NoError(t, s.AddEmotionalState("furious", 8, "I am so done with this"))
	thought, ok := s.UnfilteredReply("anything")
	require.True(t, ok)
	assert.Equal(t, "I am so done with this", thought)

	require.NoError(t, s.MarkExpressed())
	cur, ok := s.CurrentEmotion()
	require.True(t, ok)
	assert.True(t, cur.IsExpressed)

	require.NoError(t, s.AddEmotionalState("calm", 6, "whatever"))
	_, ok = s.UnfilteredReply("anything")
	assert.False(t, ok)

	require.NoError(t, s.AddEmotionalState("edgy", 7, "hmm"))
	_, ok = s.UnfilteredReply("anything")
	assert.False(t, ok, "threshold is exclusive")
}

func TestEmotionalStateRejectsBadIntensity(t *testing.T) {
	clk := &fakeClock{t: t0}
	s := openTestStore(t, testOptions(t.TempDir(), clk))

	assert.ErrorIs(t, s.AddEmotionalState("x", 0, ""), ErrInvalidIntensity)
	assert.ErrorIs(t, s.AddEmotionalState("x", 11, ""), ErrInvalidIntensity)
	_, ok := s.CurrentEmotion()
	assert.False(t, ok)
}
