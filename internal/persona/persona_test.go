package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFacts() Facts {
	return Facts{
		UserName:      "Sara",
		BehaviorType:  "neutral",
		History:       "No previous conversations.",
		OwnerCommands: "No active owner commands.",
		Punishments:   "No active punishments.",
		BehaviorRules: "No active behavior rules.",
		Sentiment:     "positive",
		Topics:        []string{"greeting", "question"},
	}
}

func TestDefaultPersona(t *testing.T) {
	p := Default()
	assert.Equal(t, "Bella", p.Name)
	assert.Contains(t, p.Character, "You are Bella")
	assert.Len(t, p.Modifiers, 2)
}

func TestOwnerInstruction(t *testing.T) {
	out := Default().OwnerInstruction(sampleFacts())
	assert.Contains(t, out, "talking to your beloved owner Sara.")
	assert.Contains(t, out, "Active Owner Commands: No active owner commands.\n")
	assert.Contains(t, out, "Relationship Status: neutral\n")
	assert.Contains(t, out, "Topics: greeting, question\n")
	assert.Contains(t, out, "Analytics: No analytics available\n")
	assert.True(t, strings.HasSuffix(out, "- Execute commands immediately\n- Show complete devotion"))
}

func TestMemberInstructionModifiers(t *testing.T) {
	p := Default()
	f := sampleFacts()
	f.Relationship = "friend"

	neutral := p.MemberInstruction(f)
	assert.Contains(t, neutral, "You are Bella, talking to Sara.")
	assert.Contains(t, neutral, "User's Status: friend\n")
	assert.True(t, strings.HasSuffix(neutral, "considering our relationship."))

	f.BehaviorType = "hostile"
	assert.True(t, strings.HasSuffix(p.MemberInstruction(f), "dismissive and sarcastic tone."))

	f.BehaviorType = "friendly"
	assert.True(t, strings.HasSuffix(p.MemberInstruction(f), "kind and helpful tone."))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Bella
character: You are Bella, shorter.
owner:
  preamble: Owner {name}.
member:
  preamble: Member {name}.
  closing: Bye.
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "You are Bella, shorter.", p.Character)
	assert.Contains(t, p.MemberInstruction(sampleFacts()), "Member Sara.")

	_, err = Parse([]byte("name: x\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
