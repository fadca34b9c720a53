package mind

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"bella/internal/lexicon"
)

// DefaultUserName is used when a user never told Bella what to call them.
const DefaultUserName = "User"

const relationshipHistoryKeep = 5

// userLocked returns the record for userID, creating it on first lookup.
func (s *Store) userLocked(userID string) *UserRecord {
	u, ok := s.root.Users[userID]
	if ok && u != nil {
		if u.Preferences == nil {
			u.Preferences = map[string]any{}
		}
		return u
	}
	now := s.now()
	u = &UserRecord{
		FirstSeen:       now,
		LastSeen:        now,
		Preferences:     map[string]any{},
		Traits:          []string{},
		Nicknames:       []string{},
		RememberedFacts: []Fact{},
	}
	s.root.Users[userID] = u
	return u
}

// TouchUser updates last-seen for userID.
func (s *Store) TouchUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLocked(userID).LastSeen = s.now()
	return s.saveLocked()
}

// User returns a copy of the profile for userID, creating it if needed.
func (s *Store) User(userID string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.root.Users[userID]
	u := s.userLocked(userID)
	out := *u
	out.Preferences = maps.Clone(u.Preferences)
	out.Traits = slices.Clone(u.Traits)
	out.Nicknames = slices.Clone(u.Nicknames)
	out.RememberedFacts = slices.Clone(u.RememberedFacts)
	if existed {
		return out, nil
	}
	return out, s.saveLocked()
}

// SetUserName sets the display name and keeps it as a nickname.
func (s *Store) SetUserName(userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userID)
	u.Name = name
	if !slices.Contains(u.Nicknames, name) {
		u.Nicknames = append(u.Nicknames, name)
	}
	return s.saveLocked()
}

// UserName returns the stored name, or DefaultUserName.
func (s *Store) UserName(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userNameLocked(userID)
}

func (s *Store) userNameLocked(userID string) string {
	if u, ok := s.root.Users[userID]; ok && u != nil && u.Name != "" {
		return u.Name
	}
	return DefaultUserName
}

// RememberFact stores fact for userID unless the same text is already known.
// It reports whether the fact was new.
func (s *Store) RememberFact(userID, fact string) (bool, error) {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return false, fmt.Errorf("fact cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userID)
	for _, f := range u.RememberedFacts {
		if strings.EqualFold(f.Fact, fact) {
			return false, nil
		}
	}
	u.RememberedFacts = append(u.RememberedFacts, Fact{Fact: fact, Timestamp: s.now()})
	return true, s.saveLocked()
}

// SetUserPreference stores a free-form preference.
func (s *Store) SetUserPreference(userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLocked(userID).Preferences[key] = value

	prefs := s.preferencesLocked(userID)
	switch key {
	case "like":
		if !slices.Contains(prefs.Likes, value) {
			prefs.Likes = append(prefs.Likes, value)
		}
	case "dislike":
		if !slices.Contains(prefs.Dislikes, value) {
			prefs.Dislikes = append(prefs.Dislikes, value)
		}
	case "topic":
		if !slices.Contains(prefs.Topics, value) {
			prefs.Topics = append(prefs.Topics, value)
		}
	case "style":
		prefs.ResponseStyle = value
	case "language":
		prefs.Language = value
	}
	return s.saveLocked()
}

func (s *Store) preferencesLocked(userID string) *UserPreferences {
	p, ok := s.root.UserPreferences[userID]
	if !ok || p == nil {
		p = &UserPreferences{Topics: []string{}, ResponseStyle: "default", Language: "auto", Likes: []string{}, Dislikes: []string{}}
		s.root.UserPreferences[userID] = p
	}
	return p
}

// SetRelationship records a new relationship status together with the
// current mood and the last day of interactions.
func (s *Store) SetRelationship(userID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rel, ok := s.root.Relationships[userID]
	if !ok || rel == nil {
		rel = &Relationship{History: []RelationshipEvent{}}
		s.root.Relationships[userID] = rel
	}
	ev := RelationshipEvent{
		Status:    status,
		Timestamp: now,
		Recent:    s.recentInteractionsLocked(userID, now),
	}
	if cur := s.currentEmotionLocked(); cur != nil {
		ev.Emotion = EmotionRef{Emotion: cur.Emotion, Intensity: cur.Intensity, Timestamp: cur.Timestamp}
	}
	rel.Status = status
	rel.LastUpdated = now
	rel.History = append(rel.History, ev)
	if over := len(rel.History) - relationshipHistoryKeep; over > 0 {
		rel.History = rel.History[over:]
	}
	return s.saveLocked()
}

// Relationship returns the status for userID, or "neutral".
func (s *Store) Relationship(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relationshipLocked(userID)
}

func (s *Store) relationshipLocked(userID string) string {
	if rel, ok := s.root.Relationships[userID]; ok && rel != nil && rel.Status != "" {
		return rel.Status
	}
	return "neutral"
}

func (s *Store) recentInteractionsLocked(userID string, now time.Time) InteractionSummary {
	var sum InteractionSummary
	for key, e := range s.root.Conversations[userID] {
		t, ok := entryTime(key, e)
		if !ok || now.Sub(t) > 24*time.Hour {
			continue
		}
		switch lexicon.Polarity(e.Context.Sentiment) {
		case lexicon.Positive:
			sum.Positive++
		case lexicon.Negative:
			sum.Negative++
		default:
			sum.Neutral++
		}
		sum.Total++
	}
	return sum
}

// TouchInteraction counts an interaction and keeps a running average of the
// seconds between interactions.
func (s *Store) TouchInteraction(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	m, ok := s.root.InteractionMetrics[userID]
	if !ok || m == nil {
		m = &InteractionMetrics{}
		s.root.InteractionMetrics[userID] = m
	}
	if m.LastInteraction != nil && m.InteractionCount > 0 {
		// gaps seen so far equals the previous interaction count
		gap := now.Sub(*m.LastInteraction).Seconds()
		n := float64(m.InteractionCount)
		m.AverageResponseTime = (m.AverageResponseTime*(n-1) + gap) / n
	}
	m.LastInteraction = &now
	m.InteractionCount++
	return s.saveLocked()
}

// Interaction returns the metrics for userID.
func (s *Store) Interaction(userID string) (InteractionMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.root.InteractionMetrics[userID]
	if !ok || m == nil {
		return InteractionMetrics{}, false
	}
	return *m, true
}

// AddUserNote stores an owner note about targetID.
func (s *Store) AddUserNote(targetID, note, context string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("note cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.UserNotes[targetID] = append(s.root.UserNotes[targetID], &UserNote{
		Timestamp: s.now(),
		Note:      note,
		Context:   context,
		Active:    true,
	})
	return s.saveLocked()
}

// UserContextSummary renders the newest three active notes about userID.
func (s *Store) UserContextSummary(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userContextSummaryLocked(userID)
}

func (s *Store) userContextSummaryLocked(userID string) string {
	var active []*UserNote
	for _, n := range s.root.UserNotes[userID] {
		if n.Active {
			active = append(active, n)
		}
	}
	if len(active) == 0 {
		return ""
	}
	if len(active) > 3 {
		active = active[len(active)-3:]
	}
	lines := make([]string, len(active))
	for i, n := range active {
		lines[i] = "Owner said: " + n.Note
	}
	return strings.Join(lines, "\n")
}

// AdjustReputation applies a positive or negative change of value to userID.
func (s *Store) AdjustReputation(userID, action string, value int) (int, error) {
	if value <= 0 {
		return 0, fmt.Errorf("reputation change must be positive, got %d", value)
	}
	delta := value
	switch action {
	case "positive":
	case "negative":
		delta = -value
	default:
		return 0, fmt.Errorf("unknown reputation action %q", action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.root.UserReputation[userID]
	if !ok || rep == nil {
		rep = &Reputation{History: []ReputationEvent{}, Badges: []string{}}
		s.root.UserReputation[userID] = rep
	}
	rep.Score += delta
	rep.History = append(rep.History, ReputationEvent{Timestamp: s.now(), Action: action, Value: value})
	if delta < 0 {
		rep.Warnings++
	}
	return rep.Score, s.saveLocked()
}

// Reputation returns the score for userID.
func (s *Store) Reputation(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rep, ok := s.root.UserReputation[userID]; ok && rep != nil {
		return rep.Score
	}
	return 0
}

// Personality describes userID from their recorded messages.
func (s *Store) Personality(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personalityLocked(userID)
}

func (s *Store) personalityLocked(userID string) string {
	convos := s.root.Conversations[userID]
	if len(convos) == 0 {
		return "neutral personality"
	}
	polite, questions := 0, 0
	for _, e := range convos {
		if lexicon.IsPolite(e.Message) {
			polite++
		}
		if strings.Contains(e.Message, "?") {
			questions++
		}
	}
	total := float64(len(convos))
	switch {
	case float64(polite)/total > 0.3:
		return "generally polite"
	case float64(questions)/total > 0.5:
		return "very curious"
	}
	return "neutral personality"
}
