// Package lexicon classifies free text with fixed word and phrase lists.
// Every function is pure: the same input always yields the same labels.
package lexicon

// Sentiment labels.
const (
	VeryPositive = "very_positive"
	Positive     = "positive"
	VeryNegative = "very_negative"
	Negative     = "negative"
	Neutral      = "neutral"
)

// Message types.
const (
	TypeCommand      = "command"
	TypeQuestion     = "question"
	TypeGreeting     = "greeting"
	TypeFarewell     = "farewell"
	TypeGratitude    = "gratitude"
	TypeConversation = "conversation"
)

// Behavior types derived from owner directives.
const (
	BehaviorFriendly = "friendly"
	BehaviorHostile  = "hostile"
	BehaviorNeutral  = "neutral"
)

// UnknownLanguage is reported when no language can be detected.
const UnknownLanguage = "unknown"

var (
	veryPositivePhrases = []string{"love you", "amazing", "wonderful", "excellent", "perfect"}
	positiveWords       = []string{"good", "nice", "thanks", "please", "kind", "happy", "great"}
	veryNegativePhrases = []string{"hate you", "stupid", "idiot", "shut up", "fuck"}
	negativeWords       = []string{"bad", "mean", "rude", "angry", "sad", "hate", "dislike"}
)

var (
	commandWords   = []string{"ban", "kick", "timeout", "behave"}
	greetingWords  = []string{"hi", "hello", "hey"}
	farewellWords  = []string{"bye", "goodbye", "cya"}
	gratitudeWords = []string{"thanks", "thank you", "thx"}
)

type topic struct {
	name  string
	words []string
}

// topics is ordered; Topics reports matches in this order.
var topics = []topic{
	{"greeting", greetingWords},
	{"farewell", farewellWords},
	{"command", commandWords},
	{"emotion", []string{"happy", "sad", "angry", "love", "hate"}},
	{"question", []string{"what", "why", "how", "when", "where"}},
	{"instruction", []string{"make", "do", "can you", "please", "help"}},
	{"feedback", []string{"good", "bad", "nice", "terrible"}},
}

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "have": {}, "what": {}, "when": {}, "where": {},
}

var (
	hostileDirectives  = []string{"not behave", "don't behave", "be mean", "be rude"}
	friendlyDirectives = []string{"behave", "be nice", "be kind", "be good"}
)

var (
	politeWords        = []string{"please", "thank", "thanks", "kind"}
	formalIndicators   = []string{"please", "thank", "would", "could", "kindly"}
	informalIndicators = []string{"hey", "sup", "yo", "lol", "omg"}
)
