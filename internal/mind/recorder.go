package mind

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/lmittmann/tint"

	"bella/internal/lexicon"
)

const (
	chainLength             = 3
	relatedLimit            = 5
	backupEveryNth          = 10
	recentInteractionWindow = 24 * time.Hour
)

// RecordConversation annotates an exchange, stores it under the user's
// conversation collection and folds it into the user's analytics. Every call
// runs the daily retention sweep and saves; every tenth entry for a user also
// attempts an interval-gated backup.
func (s *Store) RecordConversation(userID, message, response string, isOwner bool) (ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.userLocked(userID).LastSeen = now

	convos, ok := s.root.Conversations[userID]
	if !ok || convos == nil {
		convos = map[string]*ConversationEntry{}
		s.root.Conversations[userID] = convos
	}

	ctx := s.buildContextLocked(userID, message, now)
	entry := &ConversationEntry{
		Message:               message,
		Response:              response,
		IsOwner:               isOwner,
		Context:               ctx,
		RelatedMemories:       relatedMemories(convos, ctx.Keywords),
		InstructionReferences: s.relevantInstructionsLocked(userID, ctx.Keywords, now),
	}
	convos[conversationKey(convos, now)] = entry

	s.updateEngagementLocked(userID, message, ctx, now)
	s.updateResponseMetricsLocked(userID, response)
	s.processPatternsLocked(userID, message)

	switch ctx.Sentiment {
	case lexicon.VeryPositive:
		s.addMemorablePhraseLocked(message, ctx.MessageType, impactVeryPositive, now)
	case lexicon.VeryNegative:
		s.addMemorablePhraseLocked(message, ctx.MessageType, impactVeryNegative, now)
	}

	s.sweepLocked(now)
	if err := s.saveLocked(); err != nil {
		return *entry, err
	}

	if n := len(s.root.Conversations[userID]); n > 0 && n%backupEveryNth == 0 {
		if _, err := s.backupLocked(false); err != nil {
			s.log.Warn("periodic backup failed", "user", userID, tint.Err(err))
		}
	}
	return *entry, nil
}

func (s *Store) buildContextLocked(userID, message string, now time.Time) Context {
	punishment := s.activePunishmentLocked(userID)
	behavior := s.behaviorTypeLocked(userID)
	return Context{
		Timestamp:   now,
		MessageType: lexicon.MessageType(message),
		Sentiment:   lexicon.Sentiment(message),
		Language:    lexicon.Language(message),
		UserState: UserState{
			BehaviorType:        behavior,
			RecentInteractions:  s.countRecentLocked(userID, now),
			HasActivePunishment: punishment != nil,
		},
		ConversationChain: s.chainLocked(userID),
		ActiveRules: ActiveRules{
			Behavior:   behavior,
			Punishment: punishment,
		},
		Environment: Environment{
			TimeOfDay:  now.Format("15:04"),
			DayOfWeek:  now.Weekday().String(),
			ServerLoad: "normal",
		},
		Keywords:   lexicon.Keywords(message),
		Topics:     lexicon.Topics(message),
		References: lexicon.FindReferences(message),
		Emotional:  s.emotionalSnapshotLocked(),
	}
}

func (s *Store) countRecentLocked(userID string, now time.Time) int {
	n := 0
	for key, e := range s.root.Conversations[userID] {
		if t, ok := entryTime(key, e); ok && now.Sub(t) <= recentInteractionWindow {
			n++
		}
	}
	return n
}

// chainLocked returns the last exchanges with userID, oldest first.
func (s *Store) chainLocked(userID string) []ChainLink {
	convos := s.root.Conversations[userID]
	keys := sortedKeys(convos)
	if len(keys) > chainLength {
		keys = keys[len(keys)-chainLength:]
	}
	chain := make([]ChainLink, 0, len(keys))
	for _, k := range keys {
		e := convos[k]
		t, _ := entryTime(k, e)
		chain = append(chain, ChainLink{Timestamp: t, Message: e.Message, Response: e.Response})
	}
	return chain
}

// relatedMemories returns up to five earlier messages, newest first, that
// share a keyword with keywords.
func relatedMemories(convos map[string]*ConversationEntry, keywords []string) []RelatedMemory {
	out := []RelatedMemory{}
	if len(keywords) == 0 {
		return out
	}
	keys := sortedKeys(convos)
	for i := len(keys) - 1; i >= 0 && len(out) < relatedLimit; i-- {
		e := convos[keys[i]]
		if e == nil || !lexicon.SharesKeyword(lexicon.Keywords(e.Message), keywords) {
			continue
		}
		out = append(out, RelatedMemory{Type: "conversation", Timestamp: keys[i], Content: e.Message})
	}
	return out
}

func (s *Store) updateEngagementLocked(userID, message string, ctx Context, now time.Time) {
	eng, ok := s.root.Analytics.UserEngagement[userID]
	if !ok || eng == nil {
		eng = &Engagement{}
		s.root.Analytics.UserEngagement[userID] = eng
	}
	if eng.SentimentDistribution == nil {
		eng.SentimentDistribution = map[string]int{}
	}
	if eng.ActiveHours == nil {
		eng.ActiveHours = map[string]int{}
	}
	if eng.TopicsDiscussed == nil {
		eng.TopicsDiscussed = map[string]int{}
	}

	eng.TotalMessages++
	n := float64(eng.TotalMessages)
	eng.AvgMessageLength = (eng.AvgMessageLength*(n-1) + float64(utf8.RuneCountInString(message))) / n
	eng.SentimentDistribution[lexicon.Polarity(ctx.Sentiment)]++
	eng.ActiveHours[hourKey(now)]++
	for _, t := range ctx.Topics {
		eng.TopicsDiscussed[t]++
	}
}

func (s *Store) updateResponseMetricsLocked(userID, response string) {
	m, ok := s.root.Analytics.ResponseMetrics[userID]
	if !ok || m == nil {
		m = &ResponseMetrics{}
		s.root.Analytics.ResponseMetrics[userID] = m
	}
	m.Count++
	n := float64(m.Count)
	m.AvgResponseLength = (m.AvgResponseLength*(n-1) + float64(utf8.RuneCountInString(response))) / n
}

func hourKey(t time.Time) string { return strconv.Itoa(t.Hour()) }
