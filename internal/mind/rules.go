package mind

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bella/internal/lexicon"
)

// Punishment types.
const (
	PunishBan     = "ban"
	PunishKick    = "kick"
	PunishTimeout = "timeout"
)

// DefaultTimeoutMinutes applies when a timeout rule carries no duration.
const DefaultTimeoutMinutes = 5

// ErrInvalidPunishment is returned for an unknown type or a timeout without duration.
var ErrInvalidPunishment = errors.New("invalid punishment rule")

// Minutes returns the timeout length of the rule.
func (p PunishmentRule) Minutes() int {
	if p.Duration == nil || *p.Duration <= 0 {
		return DefaultTimeoutMinutes
	}
	return *p.Duration
}

func (p PunishmentRule) describe() string {
	if p.Duration != nil && *p.Duration > 0 {
		return fmt.Sprintf("%s for %d minutes", p.Type, *p.Duration)
	}
	return p.Type
}

// SetPunishment stores the rule for userID, replacing any earlier one.
// minutes is required for timeouts and ignored otherwise.
func (s *Store) SetPunishment(userID, kind string, minutes int) error {
	switch kind {
	case PunishBan, PunishKick:
		minutes = 0
	case PunishTimeout:
		if minutes <= 0 {
			return fmt.Errorf("%w: timeout needs a positive duration", ErrInvalidPunishment)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPunishment, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rule := &PunishmentRule{Timestamp: s.now(), Type: kind, Active: true}
	if minutes > 0 {
		rule.Duration = &minutes
	}
	s.root.PunishmentRules[userID] = rule
	s.log.Info("punishment rule set", "user", userID, "type", kind, "minutes", minutes)
	return s.saveLocked()
}

// Punishment returns the rule for userID if it is active.
func (s *Store) Punishment(userID string) (PunishmentRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.activePunishmentLocked(userID)
	if r == nil {
		return PunishmentRule{}, false
	}
	return *r, true
}

func (s *Store) activePunishmentLocked(userID string) *PunishmentRule {
	r, ok := s.root.PunishmentRules[userID]
	if !ok || r == nil || !r.Active {
		return nil
	}
	cp := *r
	if r.Duration != nil {
		d := *r.Duration
		cp.Duration = &d
	}
	return &cp
}

// RemovePunishment deletes the rule for userID. It reports whether one existed.
func (s *Store) RemovePunishment(userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.root.PunishmentRules[userID]; !ok {
		return false, nil
	}
	delete(s.root.PunishmentRules, userID)
	s.log.Info("punishment rule removed", "user", userID)
	return true, s.saveLocked()
}

// ActivePunishmentsSummary lists every active rule, one per line.
func (s *Store) ActivePunishmentsSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.root.PunishmentRules))
	for id, r := range s.root.PunishmentRules {
		if r != nil && r.Active {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "No active punishments."
	}
	sort.Strings(ids)
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = fmt.Sprintf("User %s: %s", id, s.root.PunishmentRules[id].describe())
	}
	return strings.Join(lines, "\n")
}

func (s *Store) punishmentHistoryLocked(userID string) string {
	r, ok := s.root.PunishmentRules[userID]
	if !ok || r == nil {
		return ""
	}
	status := "Inactive"
	if r.Active {
		status = "Active"
	}
	return fmt.Sprintf("[%s] %s - %s", r.Timestamp.Format("2006-01-02 15:04"), status, r.describe())
}

// AddBehaviorRule classifies directive, deactivates every earlier rule for
// targetID and appends the new one as the only active rule.
func (s *Store) AddBehaviorRule(targetID, directive string, isOwnerCommand bool) (BehaviorRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.root.BehaviorRules[targetID] {
		r.Active = false
	}
	rule := &BehaviorRule{
		Timestamp:      s.now(),
		Behavior:       directive,
		BehaviorType:   lexicon.ClassifyBehavior(directive),
		IsOwnerCommand: isOwnerCommand,
		Active:         true,
	}
	s.root.BehaviorRules[targetID] = append(s.root.BehaviorRules[targetID], rule)
	s.log.Info("behavior rule added", "user", targetID, "type", rule.BehaviorType)
	return *rule, s.saveLocked()
}

// BehaviorRules returns every rule recorded for userID, oldest first.
func (s *Store) BehaviorRules(userID string) []BehaviorRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BehaviorRule, 0, len(s.root.BehaviorRules[userID]))
	for _, r := range s.root.BehaviorRules[userID] {
		out = append(out, *r)
	}
	return out
}

// BehaviorType returns the type of the most recent active rule, or neutral.
func (s *Store) BehaviorType(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behaviorTypeLocked(userID)
}

func (s *Store) behaviorTypeLocked(userID string) string {
	var latest *BehaviorRule
	for _, r := range s.root.BehaviorRules[userID] {
		if !r.Active {
			continue
		}
		if latest == nil || !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil || latest.BehaviorType == "" {
		return lexicon.BehaviorNeutral
	}
	return latest.BehaviorType
}

// BehaviorRulesSummary lists the active directives for userID.
func (s *Store) BehaviorRulesSummary(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behaviorRulesSummaryLocked(userID)
}

func (s *Store) behaviorRulesSummaryLocked(userID string) string {
	var lines []string
	for _, r := range s.root.BehaviorRules[userID] {
		if r.Active {
			lines = append(lines, "- "+r.Behavior)
		}
	}
	if len(lines) == 0 {
		return "No active behavior rules."
	}
	return strings.Join(lines, "\n")
}
