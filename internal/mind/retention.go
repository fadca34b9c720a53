package mind

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bella/internal/lexicon"
)

// ConversationKeyLayout formats conversation keys. The fixed width keeps
// lexical order chronological.
const ConversationKeyLayout = "2006-01-02T15:04:05.000000Z07:00"

const sweepEvery = 24 * time.Hour

// conversationKey returns a key for now that is not yet used in convos.
// A collision gets a "#n" suffix rather than replacing the earlier entry.
func conversationKey(convos map[string]*ConversationEntry, now time.Time) string {
	base := now.Format(ConversationKeyLayout)
	if _, taken := convos[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		k := fmt.Sprintf("%s#%d", base, n)
		if _, taken := convos[k]; !taken {
			return k
		}
	}
}

// entryTime returns when an entry was recorded, falling back to its key.
func entryTime(key string, e *ConversationEntry) (time.Time, bool) {
	if e != nil && !e.Context.Timestamp.IsZero() {
		return e.Context.Timestamp, true
	}
	base, _, _ := strings.Cut(key, "#")
	if t, err := time.Parse(ConversationKeyLayout, base); err == nil {
		return t, true
	}
	return parseTimestamp(base)
}

// sortedKeys returns conversation keys oldest first.
func sortedKeys(convos map[string]*ConversationEntry) []string {
	keys := make([]string, 0, len(convos))
	for k := range convos {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, _ := entryTime(keys[i], convos[keys[i]])
		tj, _ := entryTime(keys[j], convos[keys[j]])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Sweep drops conversations older than the retention window. It runs at most
// once a day; ran is false when the previous sweep is too recent.
func (s *Store) Sweep() (removed int, ran bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, ran = s.sweepLocked(s.now())
	if !ran {
		return 0, false, nil
	}
	return removed, true, s.saveLocked()
}

func (s *Store) sweepLocked(now time.Time) (int, bool) {
	if !s.root.LastCleaned.IsZero() && now.Sub(s.root.LastCleaned) < sweepEvery {
		return 0, false
	}
	removed := 0
	for userID, convos := range s.root.Conversations {
		for key, e := range convos {
			t, ok := entryTime(key, e)
			if ok && now.Sub(t) > s.opts.Retention {
				delete(convos, key)
				removed++
			}
		}
		if len(convos) == 0 {
			delete(s.root.Conversations, userID)
		}
	}
	s.root.LastCleaned = now
	if removed > 0 {
		s.log.Info("retention sweep removed conversations", "count", removed)
	}
	return removed, true
}

// Compact summarizes the oldest half of every conversation collection that has
// grown past the compaction threshold. It returns the number of users compacted.
func (s *Store) Compact() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.compactLocked()
	if n == 0 {
		return 0, nil
	}
	return n, s.saveLocked()
}

func (s *Store) compactLocked() int {
	compacted := 0
	for userID, convos := range s.root.Conversations {
		if len(convos) <= s.opts.CompactThreshold {
			continue
		}
		keys := sortedKeys(convos)
		old := keys[:len(keys)/2]

		entries := make([]*ConversationEntry, 0, len(old))
		for _, k := range old {
			entries = append(entries, convos[k])
		}
		s.root.ConversationSummaries[userID] = append(s.root.ConversationSummaries[userID], &ConversationSummary{
			Period:  old[0] + " to " + old[len(old)-1],
			Summary: summarizeEntries(entries),
			Count:   len(entries),
		})
		for _, k := range old {
			delete(convos, k)
		}
		compacted++
	}
	if compacted > 0 {
		s.log.Info("compacted conversation history", "users", compacted)
	}
	return compacted
}

// summarizeEntries describes a block of conversations by counts alone.
func summarizeEntries(entries []*ConversationEntry) string {
	polarity := map[string]int{}
	topics := map[string]int{}
	for _, e := range entries {
		polarity[lexicon.Polarity(e.Context.Sentiment)]++
		for _, t := range e.Context.Topics {
			topics[t]++
		}
	}
	top := topCounts(topics, 3)
	names := make([]string, len(top))
	for i, pc := range top {
		names[i] = pc.Phrase
	}
	topicText := "none"
	if len(names) > 0 {
		topicText = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%d messages (positive %d, negative %d, neutral %d); frequent topics: %s",
		len(entries), polarity[lexicon.Positive], polarity[lexicon.Negative], polarity[lexicon.Neutral], topicText)
}

// topCounts returns the n highest counts, ties broken alphabetically.
func topCounts(m map[string]int, n int) []PhraseCount {
	out := make([]PhraseCount, 0, len(m))
	for k, v := range m {
		out = append(out, PhraseCount{Phrase: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Phrase < out[j].Phrase
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
