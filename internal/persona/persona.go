// Package persona holds Bella's character text and assembles the system
// instruction sent with every completion.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var defaultPersona []byte

// Persona is the decoded persona document.
type Persona struct {
	Name      string `yaml:"name"`
	Character string `yaml:"character"`
	Owner     struct {
		Preamble string   `yaml:"preamble"`
		Rules    []string `yaml:"rules"`
	} `yaml:"owner"`
	Member struct {
		Preamble string `yaml:"preamble"`
		Closing  string `yaml:"closing"`
	} `yaml:"member"`
	Modifiers map[string]string `yaml:"modifiers"`
}

// Load reads the persona at path, or the embedded one when path is empty.
func Load(path string) (*Persona, error) {
	data := defaultPersona
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read persona: %w", err)
		}
	}
	return Parse(data)
}

// Default returns the embedded persona.
func Default() *Persona {
	p, err := Parse(defaultPersona)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse decodes a persona document.
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse persona: %w", err)
	}
	if strings.TrimSpace(p.Character) == "" {
		return nil, errors.New("persona has no character text")
	}
	if p.Owner.Preamble == "" || p.Member.Preamble == "" {
		return nil, errors.New("persona is missing a preamble")
	}
	return &p, nil
}

// Facts is what the memory knows about the speaker and the current message.
type Facts struct {
	UserName      string
	Relationship  string
	BehaviorType  string
	History       string
	OwnerCommands string
	Punishments   string
	BehaviorRules string
	UserContext   string
	Sentiment     string
	Topics        []string
	Analytics     string
}

func (f Facts) analytics() string {
	if f.Analytics == "" {
		return "No analytics available"
	}
	return f.Analytics
}

func (f Facts) relationship() string {
	if f.Relationship == "" {
		return "neutral"
	}
	return f.Relationship
}

// OwnerInstruction builds the system instruction used when the guild owner
// speaks.
func (p *Persona) OwnerInstruction(f Facts) string {
	var b strings.Builder
	b.WriteString(p.Character)
	b.WriteString("\n\n")
	b.WriteString(strings.ReplaceAll(p.Owner.Preamble, "{name}", f.UserName))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Active Owner Commands: %s\n", f.OwnerCommands)
	fmt.Fprintf(&b, "Active Punishments: %s\n", f.Punishments)
	fmt.Fprintf(&b, "Recent History: %s\n", f.History)
	fmt.Fprintf(&b, "Relationship Status: %s\n", f.relationship())
	fmt.Fprintf(&b, "User Context: %s\n", f.UserContext)
	fmt.Fprintf(&b, "Current Sentiment: %s\n", f.Sentiment)
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(f.Topics, ", "))
	fmt.Fprintf(&b, "Analytics: %s\n", f.analytics())
	if len(p.Owner.Rules) > 0 {
		b.WriteString("\nIMPORTANT:\n")
		for _, r := range p.Owner.Rules {
			b.WriteString("- " + r + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// MemberInstruction builds the system instruction for everyone else. A
// friendly or hostile behavior rule appends its tone modifier.
func (p *Persona) MemberInstruction(f Facts) string {
	var b strings.Builder
	b.WriteString(p.Character)
	b.WriteString("\n\n")
	b.WriteString(strings.ReplaceAll(p.Member.Preamble, "{name}", f.UserName))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "User's Status: %s\n", f.relationship())
	fmt.Fprintf(&b, "Recent Conversations: %s\n", f.History)
	fmt.Fprintf(&b, "Behavior Rules: %s\n", f.BehaviorRules)
	fmt.Fprintf(&b, "Active Punishments: %s\n", f.Punishments)
	fmt.Fprintf(&b, "User Context: %s\n", f.UserContext)
	fmt.Fprintf(&b, "Current Sentiment: %s\n", f.Sentiment)
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(f.Topics, ", "))
	fmt.Fprintf(&b, "Analytics: %s\n", f.analytics())
	b.WriteString("\n" + p.Member.Closing)
	if mod := p.Modifiers[f.BehaviorType]; mod != "" {
		b.WriteString("\n\n" + mod)
	}
	return b.String()
}
