package mind

import (
	"time"

	"bella/internal/lexicon"
)

// Root is the persisted memory document. JSON names are the on-disk schema.
type Root struct {
	Users                 map[string]*UserRecord                   `json:"users"`
	Conversations         map[string]map[string]*ConversationEntry `json:"conversations"`
	Instructions          map[string][]*Instruction                `json:"instructions"`
	BehaviorNotes         []*BehaviorNote                          `json:"behavior_notes"`
	OwnerCommands         OwnerCommands                            `json:"owner_commands"`
	PunishmentRules       map[string]*PunishmentRule               `json:"punishment_rules"`
	BehaviorRules         map[string][]*BehaviorRule               `json:"behavior_rules"`
	EmotionalStates       []*EmotionalState                        `json:"emotional_states"`
	Analytics             Analytics                                `json:"analytics"`
	UserReputation        map[string]*Reputation                   `json:"user_reputation"`
	ConversationSummaries map[string][]*ConversationSummary        `json:"conversation_summaries"`
	Backups               []*BackupRecord                          `json:"backups"`
	MemorablePhrases      []*MemorablePhrase                       `json:"memorable_phrases"`
	MessagePatterns       map[string]*MessagePatterns              `json:"message_patterns"`
	ConversationStyles    map[string]*StyleAnalysis                `json:"conversation_styles"`
	UserPreferences       map[string]*UserPreferences              `json:"user_preferences"`
	InteractionMetrics    map[string]*InteractionMetrics           `json:"interaction_metrics"`
	Relationships         map[string]*Relationship                 `json:"relationships"`
	UserNotes             map[string][]*UserNote                   `json:"user_notes"`
	MediaInteractions     MediaInteractions                        `json:"media_interactions"`
	LastCleaned           time.Time                                `json:"last_cleaned"`
}

// UserRecord is the profile kept per user id.
type UserRecord struct {
	Name              string            `json:"name"`
	FirstSeen         time.Time         `json:"first_seen"`
	LastSeen          time.Time         `json:"last_seen"`
	Preferences       map[string]any    `json:"preferences"`
	Traits            []string          `json:"traits"`
	Nicknames         []string          `json:"nicknames"`
	RememberedFacts   []Fact            `json:"remembered_facts"`
	ConversationStyle string            `json:"conversation_style"`
}

// Fact is something a user asked to be remembered.
type Fact struct {
	Fact      string    `json:"fact"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationEntry is one recorded exchange.
type ConversationEntry struct {
	Message               string           `json:"message"`
	Response              string           `json:"response"`
	IsOwner               bool             `json:"is_owner"`
	Context               Context          `json:"context"`
	RelatedMemories       []RelatedMemory  `json:"related_memories"`
	InstructionReferences []InstructionRef `json:"instruction_references"`
}

// Context holds the annotations derived for a ConversationEntry.
type Context struct {
	Timestamp         time.Time          `json:"timestamp"`
	MessageType       string             `json:"message_type"`
	Sentiment         string             `json:"sentiment"`
	Language          string             `json:"language"`
	UserState         UserState          `json:"user_state"`
	ConversationChain []ChainLink        `json:"conversation_chain"`
	ActiveRules       ActiveRules        `json:"active_rules"`
	Environment       Environment        `json:"environmental_context"`
	Keywords          []string           `json:"keywords"`
	Topics            []string           `json:"topics"`
	References        lexicon.References `json:"references"`
	Emotional         EmotionalSnapshot  `json:"emotional_context"`
}

// UserState summarizes the rules in force for a user when a message arrived.
type UserState struct {
	BehaviorType        string `json:"behavior_type"`
	RecentInteractions  int    `json:"recent_interactions"`
	HasActivePunishment bool   `json:"has_active_punishment"`
}

// ChainLink is a prior exchange included in a Context.
type ChainLink struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
}

// ActiveRules are the behavior and punishment rules for the user.
type ActiveRules struct {
	Behavior   string          `json:"behavior"`
	Punishment *PunishmentRule `json:"punishment"`
}

// Environment describes when the message arrived.
type Environment struct {
	TimeOfDay  string `json:"time_of_day"`
	DayOfWeek  string `json:"day_of_week"`
	ServerLoad string `json:"server_load"`
}

// EmotionalSnapshot is the mood at recording time.
type EmotionalSnapshot struct {
	Emotion   string       `json:"emotion"`
	Intensity int          `json:"intensity"`
	Recent    []EmotionRef `json:"recent_emotions,omitempty"`
}

// EmotionRef is a short form of an EmotionalState.
type EmotionRef struct {
	Emotion   string    `json:"emotion"`
	Intensity int       `json:"intensity"`
	Timestamp time.Time `json:"timestamp"`
}

// RelatedMemory points at an earlier message sharing a keyword.
type RelatedMemory struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// Instruction is a directive a user gave Bella.
type Instruction struct {
	Instruction string     `json:"instruction"`
	Timestamp   time.Time  `json:"timestamp"`
	IsPermanent bool       `json:"is_permanent"`
	IsOwner     bool       `json:"is_owner"`
	Expiry      *time.Time `json:"expiry"`
	LastUsed    *time.Time `json:"last_used"`
	UsageCount  int        `json:"usage_count"`
}

// InstructionRef is an instruction matched to a conversation.
type InstructionRef struct {
	Instruction string    `json:"instruction"`
	Timestamp   time.Time `json:"timestamp"`
	IsOwner     bool      `json:"is_owner"`
	UsageCount  int       `json:"usage_count"`
}

// BehaviorNote is a general note about Bella's behavior.
type BehaviorNote struct {
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// OwnerCommands are standing orders from the guild owner.
type OwnerCommands struct {
	Permanent []*OwnerCommand `json:"permanent"`
	Temporary []*OwnerCommand `json:"temporary"`
}

// OwnerCommand is a single standing order.
type OwnerCommand struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Active    bool      `json:"active"`
}

// PunishmentRule is a moderation action re-applied whenever the user joins.
type PunishmentRule struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Duration  *int      `json:"duration"`
	Active    bool      `json:"active"`
}

// BehaviorRule is a tone directive for one user.
type BehaviorRule struct {
	Timestamp      time.Time `json:"timestamp"`
	Behavior       string    `json:"behavior"`
	BehaviorType   string    `json:"behavior_type"`
	IsOwnerCommand bool      `json:"is_owner_command"`
	Active         bool      `json:"active"`
}

// EmotionalState is one entry of Bella's mood log.
type EmotionalState struct {
	Timestamp   time.Time `json:"timestamp"`
	Emotion     string    `json:"emotion"`
	Intensity   int       `json:"intensity"`
	RawThought  string    `json:"raw_thought"`
	IsExpressed bool      `json:"is_expressed"`
}

// Analytics aggregates usage statistics.
type Analytics struct {
	UserEngagement     map[string]*Engagement         `json:"user_engagement"`
	CommandUsage       map[string]int                 `json:"command_usage"`
	ResponseMetrics    map[string]*ResponseMetrics    `json:"response_metrics"`
	ErrorLogs          []*ErrorLog                    `json:"error_logs"`
	PerformanceMetrics map[string]*PerformanceMetrics `json:"performance_metrics"`
}

// Engagement is the per-user aggregate updated on every recorded conversation.
type Engagement struct {
	TotalMessages         int            `json:"total_messages"`
	AvgMessageLength      float64        `json:"avg_message_length"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	ActiveHours           map[string]int `json:"active_hours"`
	TopicsDiscussed       map[string]int `json:"topics_discussed"`
}

// ResponseMetrics tracks reply lengths per user.
type ResponseMetrics struct {
	Count             int     `json:"count"`
	AvgResponseLength float64 `json:"avg_response_length"`
}

// ErrorLog is a handled failure.
type ErrorLog struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
}

// PerformanceMetrics tracks the latency of one operation.
type PerformanceMetrics struct {
	Count     int     `json:"count"`
	AvgMillis float64 `json:"avg_ms"`
	MaxMillis float64 `json:"max_ms"`
}

// Reputation is a user's standing with Bella.
type Reputation struct {
	Score    int               `json:"score"`
	History  []ReputationEvent `json:"history"`
	Badges   []string          `json:"badges"`
	Warnings int               `json:"warnings"`
}

// ReputationEvent is one reputation change.
type ReputationEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Value     int       `json:"value"`
}

// ConversationSummary replaces a block of compacted conversations.
type ConversationSummary struct {
	Period  string `json:"period"`
	Summary string `json:"summary"`
	Count   int    `json:"count"`
}

// BackupRecord lists a snapshot taken of the document.
type BackupRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
}

// MemorablePhrase is a high-impact message kept for reuse.
type MemorablePhrase struct {
	Timestamp   time.Time  `json:"timestamp"`
	Phrase      string     `json:"phrase"`
	Context     string     `json:"context"`
	ImpactLevel int        `json:"impact_level"`
	UsageCount  int        `json:"usage_count"`
	LastUsed    *time.Time `json:"last_used"`
}

// MessagePatterns collects recurring phrasing per user.
type MessagePatterns struct {
	GreetingPatterns []string      `json:"greeting_patterns"`
	FarewellPatterns []string      `json:"farewell_patterns"`
	QuestionPatterns []string      `json:"question_patterns"`
	ReactionPatterns []string      `json:"reaction_patterns"`
	CommonPhrases    map[string]int `json:"common_phrases"`
}

// StyleAnalysis is derived from MessagePatterns.
type StyleAnalysis struct {
	FormalityLevel     string        `json:"formality_level"`
	PreferredGreetings []string      `json:"preferred_greetings"`
	CommonPhrases      []PhraseCount `json:"common_phrases"`
	QuestionFrequency  int           `json:"question_frequency"`
	ConversationTraits []string      `json:"conversation_traits"`
}

// PhraseCount pairs a phrase with how often it was seen.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// UserPreferences are likes and settings a user told Bella about.
type UserPreferences struct {
	Topics        []string `json:"topics"`
	ResponseStyle string   `json:"response_style"`
	Language      string   `json:"language"`
	Likes         []string `json:"likes"`
	Dislikes      []string `json:"dislikes"`
}

// InteractionMetrics tracks how often a user talks to Bella.
type InteractionMetrics struct {
	LastInteraction     *time.Time `json:"last_interaction"`
	InteractionCount    int        `json:"interaction_count"`
	AverageResponseTime float64    `json:"average_response_time"`
}

// Relationship is Bella's standing with a user.
type Relationship struct {
	Status      string              `json:"status"`
	LastUpdated time.Time           `json:"last_updated"`
	History     []RelationshipEvent `json:"history"`
}

// RelationshipEvent records a status change and the mood around it.
type RelationshipEvent struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Emotion   EmotionRef         `json:"emotion"`
	Recent    InteractionSummary `json:"recent_interactions"`
}

// InteractionSummary counts conversations of the last 24 hours by polarity.
type InteractionSummary struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
	Total    int `json:"total"`
}

// UserNote is something the owner said about a user.
type UserNote struct {
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	Context   string    `json:"context,omitempty"`
	Active    bool      `json:"active"`
}

// MediaInteractions logs images and voice messages per user.
type MediaInteractions struct {
	Images        map[string][]*MediaInteraction `json:"images"`
	VoiceMessages map[string][]*MediaInteraction `json:"voice_messages"`
	LastProcessed *time.Time                     `json:"last_processed"`
}

// MediaInteraction is one processed or generated media item.
type MediaInteraction struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Context   MediaContext `json:"context"`
}

// MediaContext describes a media item.
type MediaContext struct {
	Type       string `json:"type"`
	Prompt     string `json:"prompt,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Language   string `json:"language,omitempty"`
}
