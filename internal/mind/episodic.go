package mind

import (
	"slices"
	"strings"
	"time"

	"bella/internal/lexicon"
)

// Impact levels given to automatically captured phrases.
const (
	impactVeryPositive = 8
	impactVeryNegative = 9
)

func (s *Store) addMemorablePhraseLocked(phrase, context string, impact int, now time.Time) {
	s.root.MemorablePhrases = append(s.root.MemorablePhrases, &MemorablePhrase{
		Timestamp:   now,
		Phrase:      phrase,
		Context:     context,
		ImpactLevel: impact,
	})
}

// MemorablePhrases returns every captured phrase, oldest first.
func (s *Store) MemorablePhrases() []MemorablePhrase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemorablePhrase, len(s.root.MemorablePhrases))
	for i, p := range s.root.MemorablePhrases {
		out[i] = *p
	}
	return out
}

// RelevantPhrase returns the highest-impact phrase whose context appears in
// text and marks it used.
func (s *Store) RelevantPhrase(text string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := strings.ToLower(text)
	var best *MemorablePhrase
	for _, p := range s.root.MemorablePhrases {
		if p.Context == "" || !containsWord(l, strings.ToLower(p.Context)) {
			continue
		}
		if best == nil || p.ImpactLevel > best.ImpactLevel {
			best = p
		}
	}
	if best == nil {
		return "", false
	}
	now := s.now()
	best.UsageCount++
	best.LastUsed = &now
	// usage counts are best effort; saveLocked logs failures
	_ = s.saveLocked()
	return best.Phrase, true
}

// containsWord reports whether any word of context appears in text.
func containsWord(text, context string) bool {
	for _, w := range strings.Fields(context) {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func (s *Store) patternsLocked(userID string) *MessagePatterns {
	p, ok := s.root.MessagePatterns[userID]
	if !ok || p == nil {
		p = &MessagePatterns{
			GreetingPatterns: []string{},
			FarewellPatterns: []string{},
			QuestionPatterns: []string{},
			ReactionPatterns: []string{},
			CommonPhrases:    map[string]int{},
		}
		s.root.MessagePatterns[userID] = p
	}
	if p.CommonPhrases == nil {
		p.CommonPhrases = map[string]int{}
	}
	return p
}

// processPatternsLocked files message under its pattern kind and counts its
// three-word phrases.
func (s *Store) processPatternsLocked(userID, message string) {
	p := s.patternsLocked(userID)
	text := strings.TrimSpace(message)
	add := func(list []string) []string {
		if slices.Contains(list, text) {
			return list
		}
		return append(list, text)
	}
	switch lexicon.PatternKind(text) {
	case "greeting":
		p.GreetingPatterns = add(p.GreetingPatterns)
	case "farewell":
		p.FarewellPatterns = add(p.FarewellPatterns)
	case "question":
		p.QuestionPatterns = add(p.QuestionPatterns)
	}
	for _, tri := range lexicon.Trigrams(strings.ToLower(text)) {
		p.CommonPhrases[tri]++
	}
}

// AnalyzeStyle derives a style profile for userID from its message patterns
// and stores it.
func (s *Store) AnalyzeStyle(userID string) (StyleAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.analyzeStyleLocked(userID)
	s.root.ConversationStyles[userID] = &a
	if u, ok := s.root.Users[userID]; ok && u != nil {
		u.ConversationStyle = a.FormalityLevel
	}
	return a, s.saveLocked()
}

func (s *Store) analyzeStyleLocked(userID string) StyleAnalysis {
	p := s.patternsLocked(userID)
	phrases := make([]string, 0, len(p.CommonPhrases))
	for ph := range p.CommonPhrases {
		phrases = append(phrases, ph)
	}
	a := StyleAnalysis{
		FormalityLevel:     lexicon.Formality(phrases),
		PreferredGreetings: slices.Clone(p.GreetingPatterns),
		CommonPhrases:      topCounts(p.CommonPhrases, 5),
		QuestionFrequency:  len(p.QuestionPatterns),
		ConversationTraits: []string{},
	}
	if a.PreferredGreetings == nil {
		a.PreferredGreetings = []string{}
	}
	if len(p.GreetingPatterns) > 3 {
		a.ConversationTraits = append(a.ConversationTraits, "consistently_polite")
	}
	if len(p.QuestionPatterns) > 5 {
		a.ConversationTraits = append(a.ConversationTraits, "inquisitive")
	}
	if len(p.CommonPhrases) > 10 {
		a.ConversationTraits = append(a.ConversationTraits, "conversational")
	}
	return a
}
