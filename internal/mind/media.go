package mind

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Media kinds.
const (
	MediaImages = "images"
	MediaVoice  = "voice_messages"
)

const errorLogKeep = 100

// AddMediaInteraction logs an image or voice item for userID and returns its id.
func (s *Store) AddMediaInteraction(userID, kind string, mc MediaContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bucket map[string][]*MediaInteraction
	switch kind {
	case MediaImages:
		bucket = s.root.MediaInteractions.Images
	case MediaVoice:
		bucket = s.root.MediaInteractions.VoiceMessages
	default:
		return "", fmt.Errorf("unknown media kind %q", kind)
	}

	now := s.now()
	id := uuid.NewString()
	bucket[userID] = append(bucket[userID], &MediaInteraction{ID: id, Timestamp: now, Context: mc})
	s.root.MediaInteractions.LastProcessed = &now
	return id, s.saveLocked()
}

// RecordCommandUsage counts one invocation of a command.
func (s *Store) RecordCommandUsage(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.Analytics.CommandUsage[name]++
	return s.saveLocked()
}

// LogError keeps a handled failure in the analytics error log.
func (s *Store) LogError(source, userID string, err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.Analytics.ErrorLogs = append(s.root.Analytics.ErrorLogs, &ErrorLog{
		Timestamp: s.now(),
		Source:    source,
		UserID:    userID,
		Message:   err.Error(),
	})
	if over := len(s.root.Analytics.ErrorLogs) - errorLogKeep; over > 0 {
		s.root.Analytics.ErrorLogs = s.root.Analytics.ErrorLogs[over:]
	}
	return s.saveLocked()
}

// RecordLatency folds d into the running latency figures of operation.
func (s *Store) RecordLatency(operation string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.root.Analytics.PerformanceMetrics[operation]
	if !ok || m == nil {
		m = &PerformanceMetrics{}
		s.root.Analytics.PerformanceMetrics[operation] = m
	}
	ms := float64(d) / float64(time.Millisecond)
	m.Count++
	n := float64(m.Count)
	m.AvgMillis = (m.AvgMillis*(n-1) + ms) / n
	if ms > m.MaxMillis {
		m.MaxMillis = ms
	}
	return s.saveLocked()
}
