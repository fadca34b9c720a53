package lexicon

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/RadhiFadlillah/whatlanggo"
)

var (
	mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)
	commandPattern = regexp.MustCompile(`!(\w+)`)
)

// References holds the user mentions and bang-commands found in a message.
type References struct {
	Users    []string `json:"users"`
	Commands []string `json:"commands"`
}

// Sentiment labels text by the first lexicon that matches, in this order:
// very-positive phrases, positive words, very-negative phrases, negative words.
func Sentiment(text string) string {
	l := strings.ToLower(text)
	switch {
	case containsAny(l, veryPositivePhrases):
		return VeryPositive
	case containsAny(l, positiveWords):
		return Positive
	case containsAny(l, veryNegativePhrases):
		return VeryNegative
	case containsAny(l, negativeWords):
		return Negative
	}
	return Neutral
}

// Polarity folds a sentiment label into positive, negative or neutral.
func Polarity(sentiment string) string {
	switch {
	case strings.Contains(sentiment, "positive"):
		return Positive
	case strings.Contains(sentiment, "negative"):
		return Negative
	}
	return Neutral
}

// MessageType returns the first matching type; commands win over everything.
func MessageType(text string) string {
	l := strings.ToLower(text)
	switch {
	case containsAny(l, commandWords):
		return TypeCommand
	case strings.Contains(l, "?"):
		return TypeQuestion
	case containsAny(l, greetingWords):
		return TypeGreeting
	case containsAny(l, farewellWords):
		return TypeFarewell
	case containsAny(l, gratitudeWords):
		return TypeGratitude
	}
	return TypeConversation
}

// Topics returns every topic label whose keyword set matches the text.
func Topics(text string) []string {
	l := strings.ToLower(text)
	out := []string{}
	for _, t := range topics {
		if containsAny(l, t.words) {
			out = append(out, t.name)
		}
	}
	return out
}

// Keywords returns the distinct lowercased tokens longer than three characters,
// minus stop words, sorted.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(tok) <= 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// SharesKeyword reports whether the two keyword sets intersect.
func SharesKeyword(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, k := range b {
		set[k] = struct{}{}
	}
	for _, k := range a {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

// FindReferences extracts <@id> mentions and !command tokens.
func FindReferences(text string) References {
	refs := References{Users: []string{}, Commands: []string{}}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		refs.Users = append(refs.Users, m[1])
	}
	for _, m := range commandPattern.FindAllStringSubmatch(text, -1) {
		refs.Commands = append(refs.Commands, m[1])
	}
	return refs
}

// MentionedUser returns the first mentioned user id, if any.
func MentionedUser(text string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ClassifyBehavior maps an owner directive to a behavior type.
// Hostile phrases are checked first, so "don't behave" is hostile.
func ClassifyBehavior(directive string) string {
	l := strings.ToLower(directive)
	switch {
	case containsAny(l, hostileDirectives):
		return BehaviorHostile
	case containsAny(l, friendlyDirectives):
		return BehaviorFriendly
	}
	return BehaviorNeutral
}

// IsPolite reports whether the text carries a politeness marker.
func IsPolite(text string) bool {
	return containsAny(strings.ToLower(text), politeWords)
}

// Formality compares formal and informal indicator counts over a phrase set.
func Formality(phrases []string) string {
	formal, informal := 0, 0
	for _, p := range phrases {
		l := strings.ToLower(p)
		if containsAny(l, formalIndicators) {
			formal++
		}
		if containsAny(l, informalIndicators) {
			informal++
		}
	}
	switch {
	case formal > informal:
		return "formal"
	case informal > formal:
		return "informal"
	}
	return "neutral"
}

// PatternKind reports whether a message is a greeting, farewell or question
// for pattern tracking. The empty string means none.
func PatternKind(text string) string {
	l := strings.ToLower(text)
	switch {
	case containsAny(l, greetingWords):
		return "greeting"
	case containsAny(l, farewellWords):
		return "farewell"
	case strings.Contains(text, "?"):
		return "question"
	}
	return ""
}

// Trigrams returns every run of three consecutive whitespace-separated words.
func Trigrams(text string) []string {
	words := strings.Fields(text)
	if len(words) < 3 {
		return nil
	}
	out := make([]string, 0, len(words)-2)
	for i := 0; i+3 <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+3], " "))
	}
	return out
}

// Language returns the ISO 639-1 code of the detected language, or
// UnknownLanguage for empty or undetectable text.
func Language(text string) string {
	if strings.TrimSpace(text) == "" {
		return UnknownLanguage
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return UnknownLanguage
	}
	return code
}

// ContainsArabic reports whether any Arabic letter appears in text.
func ContainsArabic(text string) bool {
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
