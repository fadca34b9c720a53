package mind

import (
	"errors"
	"fmt"
	"sort"
)

// UnfilteredThreshold is the intensity above which a raw thought may replace a reply.
const UnfilteredThreshold = 7

// ErrInvalidIntensity is returned for intensities outside 1..10.
var ErrInvalidIntensity = errors.New("intensity must be between 1 and 10")

// AddEmotionalState appends a mood entry; it becomes the current state.
func (s *Store) AddEmotionalState(emotion string, intensity int, thought string) error {
	if intensity < 1 || intensity > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidIntensity, intensity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.EmotionalStates = append(s.root.EmotionalStates, &EmotionalState{
		Timestamp:  s.now(),
		Emotion:    emotion,
		Intensity:  intensity,
		RawThought: thought,
	})
	s.log.Info("emotional state added", "emotion", emotion, "intensity", intensity)
	return s.saveLocked()
}

// CurrentEmotion returns the last logged state.
func (s *Store) CurrentEmotion() (EmotionalState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.currentEmotionLocked()
	if cur == nil {
		return EmotionalState{}, false
	}
	return *cur, true
}

func (s *Store) currentEmotionLocked() *EmotionalState {
	n := len(s.root.EmotionalStates)
	if n == 0 {
		return nil
	}
	return s.root.EmotionalStates[n-1]
}

// UnfilteredReply returns the current raw thought when its intensity exceeds
// UnfilteredThreshold. The incoming message does not change the result.
func (s *Store) UnfilteredReply(_ string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.currentEmotionLocked()
	if cur == nil || cur.Intensity <= UnfilteredThreshold {
		return "", false
	}
	return cur.RawThought, true
}

// MarkExpressed flags the current state's thought as said out loud.
func (s *Store) MarkExpressed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.currentEmotionLocked()
	if cur == nil || cur.IsExpressed {
		return nil
	}
	cur.IsExpressed = true
	return s.saveLocked()
}

// recentEmotionsLocked returns up to limit states, newest first.
func (s *Store) recentEmotionsLocked(limit int) []EmotionRef {
	states := make([]*EmotionalState, len(s.root.EmotionalStates))
	copy(states, s.root.EmotionalStates)
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Timestamp.After(states[j].Timestamp)
	})
	if len(states) > limit {
		states = states[:limit]
	}
	out := make([]EmotionRef, len(states))
	for i, st := range states {
		out[i] = EmotionRef{Emotion: st.Emotion, Intensity: st.Intensity, Timestamp: st.Timestamp}
	}
	return out
}

func (s *Store) emotionalSnapshotLocked() EmotionalSnapshot {
	cur := s.currentEmotionLocked()
	if cur == nil {
		return EmotionalSnapshot{Emotion: "neutral"}
	}
	return EmotionalSnapshot{
		Emotion:   cur.Emotion,
		Intensity: cur.Intensity,
		Recent:    s.recentEmotionsLocked(5),
	}
}
