package mind

import (
	"fmt"
	"sort"
	"strings"
)

// RecentConversations returns up to limit entries for userID, oldest first.
func (s *Store) RecentConversations(userID string, limit int) []ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	convos := s.root.Conversations[userID]
	keys := sortedKeys(convos)
	if limit > 0 && len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}
	out := make([]ConversationEntry, len(keys))
	for i, k := range keys {
		out[i] = *convos[k]
	}
	return out
}

// ConversationSummary renders the last five exchanges with userID and any
// compacted history for prompt context.
func (s *Store) ConversationSummary(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, sum := range s.root.ConversationSummaries[userID] {
		fmt.Fprintf(&b, "Earlier (%s): %s\n", sum.Period, sum.Summary)
	}
	convos := s.root.Conversations[userID]
	keys := sortedKeys(convos)
	if len(keys) > 5 {
		keys = keys[len(keys)-5:]
	}
	for _, k := range keys {
		e := convos[k]
		fmt.Fprintf(&b, "User: %s\nBella: %s\n", e.Message, e.Response)
	}
	if b.Len() == 0 {
		return "No previous conversations."
	}
	return strings.TrimRight(b.String(), "\n")
}

// AllUsersSummary lists every known user with the facts Bella has about them.
func (s *Store) AllUsersSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.root.Users) == 0 {
		return "No known users."
	}
	ids := make([]string, 0, len(s.root.Users))
	for id := range s.root.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		u := s.root.Users[id]
		fmt.Fprintf(&b, "- %s (%s): relationship %s", s.userNameLocked(id), id, s.relationshipLocked(id))
		if u != nil && len(u.RememberedFacts) > 0 {
			facts := make([]string, len(u.RememberedFacts))
			for i, f := range u.RememberedFacts {
				facts[i] = f.Fact
			}
			fmt.Fprintf(&b, "; facts: %s", strings.Join(facts, ", "))
		}
		if hist := s.punishmentHistoryLocked(id); hist != "" {
			fmt.Fprintf(&b, "; punishment: %s", hist)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Engagement returns the engagement aggregate for userID.
func (s *Store) Engagement(userID string) (Engagement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.root.Analytics.UserEngagement[userID]
	if !ok || eng == nil {
		return Engagement{}, false
	}
	out := *eng
	out.SentimentDistribution = copyCounts(eng.SentimentDistribution)
	out.ActiveHours = copyCounts(eng.ActiveHours)
	out.TopicsDiscussed = copyCounts(eng.TopicsDiscussed)
	return out, true
}

// UserAnalytics renders engagement statistics for userID.
func (s *Store) UserAnalytics(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.root.Analytics.UserEngagement[userID]
	if !ok || eng == nil || eng.TotalMessages == 0 {
		return "No analytics available."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total messages: %d\n", eng.TotalMessages)
	fmt.Fprintf(&b, "Average message length: %.1f\n", eng.AvgMessageLength)
	fmt.Fprintf(&b, "Sentiment: positive %d, negative %d, neutral %d\n",
		eng.SentimentDistribution["positive"], eng.SentimentDistribution["negative"], eng.SentimentDistribution["neutral"])
	if top := topCounts(eng.ActiveHours, 1); len(top) > 0 {
		fmt.Fprintf(&b, "Most active hour: %s:00\n", top[0].Phrase)
	}
	if top := topCounts(eng.TopicsDiscussed, 3); len(top) > 0 {
		names := make([]string, len(top))
		for i, pc := range top {
			names[i] = pc.Phrase
		}
		fmt.Fprintf(&b, "Favorite topics: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Personality: %s", s.personalityLocked(userID))
	return b.String()
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
