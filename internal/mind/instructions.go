package mind

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bella/internal/lexicon"
)

// temporaryInstructionTTL bounds how long a non-permanent instruction applies.
const temporaryInstructionTTL = 24 * time.Hour

// AddInstruction stores a directive from userID. Non-permanent instructions
// expire after a day.
func (s *Store) AddInstruction(userID, text string, permanent, isOwner bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("instruction cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	in := &Instruction{
		Instruction: text,
		Timestamp:   now,
		IsPermanent: permanent,
		IsOwner:     isOwner,
	}
	if !permanent {
		exp := now.Add(temporaryInstructionTTL)
		in.Expiry = &exp
	}
	s.root.Instructions[userID] = append(s.root.Instructions[userID], in)
	return s.saveLocked()
}

func (in *Instruction) activeAt(now time.Time) bool {
	return in.IsPermanent || in.Expiry == nil || now.Before(*in.Expiry)
}

// ActiveInstructions returns the unexpired instructions of userID, oldest first.
func (s *Store) ActiveInstructions(userID string) []Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []Instruction
	for _, in := range s.root.Instructions[userID] {
		if in.activeAt(now) {
			out = append(out, *in)
		}
	}
	return out
}

// relevantInstructionsLocked picks up to three active instructions sharing a
// keyword with keywords. Owner instructions rank first, then usage, then
// recency. Picked instructions have their usage bumped.
func (s *Store) relevantInstructionsLocked(userID string, keywords []string, now time.Time) []InstructionRef {
	var picked []*Instruction
	for _, in := range s.root.Instructions[userID] {
		if !in.activeAt(now) {
			continue
		}
		if lexicon.SharesKeyword(lexicon.Keywords(in.Instruction), keywords) {
			picked = append(picked, in)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		if a.IsOwner != b.IsOwner {
			return a.IsOwner
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.Timestamp.After(b.Timestamp)
	})
	if len(picked) > 3 {
		picked = picked[:3]
	}
	refs := make([]InstructionRef, 0, len(picked))
	for _, in := range picked {
		in.UsageCount++
		used := now
		in.LastUsed = &used
		refs = append(refs, InstructionRef{
			Instruction: in.Instruction,
			Timestamp:   in.Timestamp,
			IsOwner:     in.IsOwner,
			UsageCount:  in.UsageCount,
		})
	}
	return refs
}

// AddBehaviorNote appends a general note about how Bella should act.
func (s *Store) AddBehaviorNote(note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.BehaviorNotes = append(s.root.BehaviorNotes, &BehaviorNote{Timestamp: s.now(), Note: note})
	return s.saveLocked()
}

// BehaviorSummary renders the five newest behavior notes.
func (s *Store) BehaviorSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.root.BehaviorNotes
	if len(notes) == 0 {
		return "No behavior notes."
	}
	if len(notes) > 5 {
		notes = notes[len(notes)-5:]
	}
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = "- " + n.Note
	}
	return strings.Join(lines, "\n")
}

// AddOwnerCommand stores a standing order from the owner.
func (s *Store) AddOwnerCommand(text string, permanent bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("command cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := &OwnerCommand{Timestamp: s.now(), Command: text, Active: true}
	if permanent {
		s.root.OwnerCommands.Permanent = append(s.root.OwnerCommands.Permanent, cmd)
	} else {
		s.root.OwnerCommands.Temporary = append(s.root.OwnerCommands.Temporary, cmd)
	}
	return s.saveLocked()
}

// ActiveOwnerCommandsSummary lists active standing orders, permanent first.
func (s *Store) ActiveOwnerCommandsSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []string
	for _, c := range s.root.OwnerCommands.Permanent {
		if c.Active {
			lines = append(lines, "- [permanent] "+c.Command)
		}
	}
	for _, c := range s.root.OwnerCommands.Temporary {
		if c.Active {
			lines = append(lines, "- [temporary] "+c.Command)
		}
	}
	if len(lines) == 0 {
		return "No active owner commands."
	}
	return strings.Join(lines, "\n")
}
