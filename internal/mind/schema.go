package mind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

type kind int

const (
	kindMapping kind = iota
	kindSequence
	kindScalar
)

func (k kind) String() string {
	switch k {
	case kindMapping:
		return "mapping"
	case kindSequence:
		return "sequence"
	}
	return "scalar"
}

// requiredKeys are the top-level collections every document must carry.
var requiredKeys = []struct {
	name string
	kind kind
}{
	{"users", kindMapping},
	{"conversations", kindMapping},
	{"instructions", kindMapping},
	{"behavior_notes", kindSequence},
	{"owner_commands", kindMapping},
	{"punishment_rules", kindMapping},
	{"behavior_rules", kindMapping},
	{"emotional_states", kindSequence},
	{"analytics", kindMapping},
	{"user_reputation", kindMapping},
	{"conversation_summaries", kindMapping},
	{"backups", kindSequence},
	{"memorable_phrases", kindSequence},
	{"message_patterns", kindMapping},
	{"conversation_styles", kindMapping},
	{"user_preferences", kindMapping},
	{"interaction_metrics", kindMapping},
	{"relationships", kindMapping},
	{"user_notes", kindMapping},
	{"media_interactions", kindMapping},
}

// defaultRoot returns an empty document with every collection present.
func defaultRoot(now time.Time) *Root {
	return &Root{
		Users:           map[string]*UserRecord{},
		Conversations:   map[string]map[string]*ConversationEntry{},
		Instructions:    map[string][]*Instruction{},
		BehaviorNotes:   []*BehaviorNote{},
		OwnerCommands:   OwnerCommands{Permanent: []*OwnerCommand{}, Temporary: []*OwnerCommand{}},
		PunishmentRules: map[string]*PunishmentRule{},
		BehaviorRules:   map[string][]*BehaviorRule{},
		EmotionalStates: []*EmotionalState{},
		Analytics: Analytics{
			UserEngagement:     map[string]*Engagement{},
			CommandUsage:       map[string]int{},
			ResponseMetrics:    map[string]*ResponseMetrics{},
			ErrorLogs:          []*ErrorLog{},
			PerformanceMetrics: map[string]*PerformanceMetrics{},
		},
		UserReputation:        map[string]*Reputation{},
		ConversationSummaries: map[string][]*ConversationSummary{},
		Backups:               []*BackupRecord{},
		MemorablePhrases:      []*MemorablePhrase{},
		MessagePatterns:       map[string]*MessagePatterns{},
		ConversationStyles:    map[string]*StyleAnalysis{},
		UserPreferences:       map[string]*UserPreferences{},
		InteractionMetrics:    map[string]*InteractionMetrics{},
		Relationships:         map[string]*Relationship{},
		UserNotes:             map[string][]*UserNote{},
		MediaInteractions: MediaInteractions{
			Images:        map[string][]*MediaInteraction{},
			VoiceMessages: map[string][]*MediaInteraction{},
		},
		LastCleaned: now,
	}
}

// fields maps each top-level key to a pointer to its field in r.
func (r *Root) fields() map[string]any {
	return map[string]any{
		"users":                  &r.Users,
		"conversations":          &r.Conversations,
		"instructions":           &r.Instructions,
		"behavior_notes":         &r.BehaviorNotes,
		"owner_commands":         &r.OwnerCommands,
		"punishment_rules":       &r.PunishmentRules,
		"behavior_rules":         &r.BehaviorRules,
		"emotional_states":       &r.EmotionalStates,
		"analytics":              &r.Analytics,
		"user_reputation":        &r.UserReputation,
		"conversation_summaries": &r.ConversationSummaries,
		"backups":                &r.Backups,
		"memorable_phrases":      &r.MemorablePhrases,
		"message_patterns":       &r.MessagePatterns,
		"conversation_styles":    &r.ConversationStyles,
		"user_preferences":       &r.UserPreferences,
		"interaction_metrics":    &r.InteractionMetrics,
		"relationships":          &r.Relationships,
		"user_notes":             &r.UserNotes,
		"media_interactions":     &r.MediaInteractions,
		"last_cleaned":           &r.LastCleaned,
	}
}

// normalize replaces nil containers left behind by JSON nulls.
func (r *Root) normalize(now time.Time) {
	d := defaultRoot(now)
	if r.Users == nil {
		r.Users = d.Users
	}
	if r.Conversations == nil {
		r.Conversations = d.Conversations
	}
	if r.Instructions == nil {
		r.Instructions = d.Instructions
	}
	if r.BehaviorNotes == nil {
		r.BehaviorNotes = d.BehaviorNotes
	}
	if r.OwnerCommands.Permanent == nil {
		r.OwnerCommands.Permanent = d.OwnerCommands.Permanent
	}
	if r.OwnerCommands.Temporary == nil {
		r.OwnerCommands.Temporary = d.OwnerCommands.Temporary
	}
	if r.PunishmentRules == nil {
		r.PunishmentRules = d.PunishmentRules
	}
	if r.BehaviorRules == nil {
		r.BehaviorRules = d.BehaviorRules
	}
	if r.EmotionalStates == nil {
		r.EmotionalStates = d.EmotionalStates
	}
	a := &r.Analytics
	if a.UserEngagement == nil {
		a.UserEngagement = d.Analytics.UserEngagement
	}
	if a.CommandUsage == nil {
		a.CommandUsage = d.Analytics.CommandUsage
	}
	if a.ResponseMetrics == nil {
		a.ResponseMetrics = d.Analytics.ResponseMetrics
	}
	if a.ErrorLogs == nil {
		a.ErrorLogs = d.Analytics.ErrorLogs
	}
	if a.PerformanceMetrics == nil {
		a.PerformanceMetrics = d.Analytics.PerformanceMetrics
	}
	if r.UserReputation == nil {
		r.UserReputation = d.UserReputation
	}
	if r.ConversationSummaries == nil {
		r.ConversationSummaries = d.ConversationSummaries
	}
	if r.Backups == nil {
		r.Backups = d.Backups
	}
	if r.MemorablePhrases == nil {
		r.MemorablePhrases = d.MemorablePhrases
	}
	if r.MessagePatterns == nil {
		r.MessagePatterns = d.MessagePatterns
	}
	if r.ConversationStyles == nil {
		r.ConversationStyles = d.ConversationStyles
	}
	if r.UserPreferences == nil {
		r.UserPreferences = d.UserPreferences
	}
	if r.InteractionMetrics == nil {
		r.InteractionMetrics = d.InteractionMetrics
	}
	if r.Relationships == nil {
		r.Relationships = d.Relationships
	}
	if r.UserNotes == nil {
		r.UserNotes = d.UserNotes
	}
	if r.MediaInteractions.Images == nil {
		r.MediaInteractions.Images = d.MediaInteractions.Images
	}
	if r.MediaInteractions.VoiceMessages == nil {
		r.MediaInteractions.VoiceMessages = d.MediaInteractions.VoiceMessages
	}
}

// rawDocument is a document split into its top-level keys.
type rawDocument map[string]json.RawMessage

func parseDocument(data []byte) (rawDocument, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return doc, nil
}

func defaultDocument(now time.Time) rawDocument {
	doc, err := splitRoot(defaultRoot(now))
	if err != nil {
		// the default root always marshals
		panic(err)
	}
	return doc
}

func splitRoot(r *Root) (rawDocument, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func kindOf(raw json.RawMessage) kind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return kindScalar
	}
	switch trimmed[0] {
	case '{':
		return kindMapping
	case '[':
		return kindSequence
	}
	return kindScalar
}

// backfill adds missing top-level keys from defaults and returns their names.
func backfill(doc, defaults rawDocument) []string {
	var added []string
	for _, rk := range requiredKeys {
		if _, ok := doc[rk.name]; !ok {
			doc[rk.name] = defaults[rk.name]
			added = append(added, rk.name)
		}
	}
	if _, ok := doc["last_cleaned"]; !ok {
		doc["last_cleaned"] = defaults["last_cleaned"]
		added = append(added, "last_cleaned")
	}
	return added
}

// integrityProblems lists required keys that are missing or hold the wrong container kind.
func integrityProblems(doc rawDocument) []string {
	var problems []string
	for _, rk := range requiredKeys {
		raw, ok := doc[rk.name]
		if !ok {
			problems = append(problems, rk.name+": missing")
			continue
		}
		if got := kindOf(raw); got != rk.kind {
			problems = append(problems, fmt.Sprintf("%s: expected %s, found %s", rk.name, rk.kind, got))
		}
	}
	return problems
}

// validDocument reports whether data is a document with every required key of the right kind.
func validDocument(data []byte) (rawDocument, bool) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, false
	}
	return doc, len(integrityProblems(doc)) == 0
}

// repair fixes doc in place. Missing or mis-kinded keys take their default
// value; mappings with default sub-keys gain the ones they lack.
func repair(doc, defaults rawDocument) []string {
	var fixed []string
	for _, rk := range requiredKeys {
		raw, ok := doc[rk.name]
		if !ok || kindOf(raw) != rk.kind {
			doc[rk.name] = defaults[rk.name]
			fixed = append(fixed, rk.name)
			continue
		}
		if rk.kind != kindMapping {
			continue
		}
		merged, changed := mergeSubKeys(raw, defaults[rk.name])
		if changed {
			doc[rk.name] = merged
			fixed = append(fixed, rk.name)
		}
	}
	return fixed
}

// mergeSubKeys adds keys present in def but absent from raw.
func mergeSubKeys(raw, def json.RawMessage) (json.RawMessage, bool) {
	var have, want map[string]json.RawMessage
	if err := json.Unmarshal(raw, &have); err != nil {
		return raw, false
	}
	if err := json.Unmarshal(def, &want); err != nil || len(want) == 0 {
		return raw, false
	}
	changed := false
	for k, v := range want {
		if _, ok := have[k]; !ok {
			have[k] = v
			changed = true
		}
	}
	if !changed {
		return raw, false
	}
	out, err := json.Marshal(have)
	if err != nil {
		return raw, false
	}
	return out, true
}

// decode converts doc into a typed Root. Unknown keys come back as extras.
// Entries that cannot be decoded are dropped one by one, nil entries left by
// JSON nulls are pruned, and the paths of both are returned.
func decode(doc rawDocument, now time.Time) (*Root, rawDocument, []string) {
	root := defaultRoot(now)
	targets := root.fields()
	extras := rawDocument{}
	var repaired []string

	for key, raw := range doc {
		target, ok := targets[key]
		if !ok {
			extras[key] = raw
			continue
		}
		v := reflect.ValueOf(target).Elem()
		if !decodeInto(healTimestamps(key, raw), v, key, &repaired) {
			v.Set(reflect.ValueOf(defaultRoot(now).fields()[key]).Elem())
			repaired = append(repaired, key)
		}
	}
	pruneNulls(reflect.ValueOf(root), "", &repaired)
	root.normalize(now)
	slices.Sort(repaired)
	return root, extras, repaired
}

var timeType = reflect.TypeOf(time.Time{})

// decodeInto decodes raw into the settable v. When the value does not decode
// as a whole, mappings and sequences are decoded entry by entry and records
// field by field; failed entries are dropped, failed fields keep their zero
// value, and both are appended to dropped. It reports whether v is usable.
func decodeInto(raw json.RawMessage, v reflect.Value, path string, dropped *[]string) bool {
	fresh := reflect.New(v.Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err == nil {
		v.Set(fresh.Elem())
		return true
	}

	switch v.Kind() {
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if !decodeInto(raw, elem.Elem(), path, dropped) {
			return false
		}
		v.Set(elem)
		return true

	case reflect.Map:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return false
		}
		m := reflect.MakeMapWithSize(v.Type(), len(entries))
		for k, r := range entries {
			elem := reflect.New(v.Type().Elem()).Elem()
			if !decodeInto(r, elem, joinPath(path, k), dropped) {
				*dropped = append(*dropped, joinPath(path, k))
				continue
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(v.Type().Key()), elem)
		}
		v.Set(m)
		return true

	case reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return false
		}
		out := reflect.MakeSlice(v.Type(), 0, len(items))
		for i, r := range items {
			elem := reflect.New(v.Type().Elem()).Elem()
			p := fmt.Sprintf("%s[%d]", path, i)
			if !decodeInto(r, elem, p, dropped) {
				*dropped = append(*dropped, p)
				continue
			}
			out = reflect.Append(out, elem)
		}
		v.Set(out)
		return true

	case reflect.Struct:
		if v.Type() == timeType {
			return false
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return false
		}
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < out.NumField(); i++ {
			name, ok := jsonName(v.Type().Field(i))
			if !ok {
				continue
			}
			r, ok := fields[name]
			if !ok {
				continue
			}
			if !decodeInto(r, out.Field(i), joinPath(path, name), dropped) {
				*dropped = append(*dropped, joinPath(path, name))
			}
		}
		v.Set(out)
		return true
	}
	return false
}

// pruneNulls removes nil pointers and nil maps held as map values or slice
// elements, appending their paths to pruned. It returns the cleaned value.
func pruneNulls(v reflect.Value, path string, pruned *[]string) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			e := v.Elem()
			e.Set(pruneNulls(e, path, pruned))
		}

	case reflect.Struct:
		if v.Type() == timeType {
			return v
		}
		if !v.CanSet() {
			cp := reflect.New(v.Type()).Elem()
			cp.Set(v)
			v = cp
		}
		for i := 0; i < v.NumField(); i++ {
			name, ok := jsonName(v.Type().Field(i))
			if !ok {
				continue
			}
			f := v.Field(i)
			f.Set(pruneNulls(f, joinPath(path, name), pruned))
		}

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		for _, k := range v.MapKeys() {
			p := joinPath(path, fmt.Sprint(k.Interface()))
			e := v.MapIndex(k)
			if isNilEntry(e) {
				v.SetMapIndex(k, reflect.Value{})
				*pruned = append(*pruned, p)
				continue
			}
			v.SetMapIndex(k, pruneNulls(e, p, pruned))
		}

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			p := fmt.Sprintf("%s[%d]", path, i)
			e := v.Index(i)
			if isNilEntry(e) {
				*pruned = append(*pruned, p)
				continue
			}
			out = reflect.Append(out, pruneNulls(e, p, pruned))
		}
		return out
	}
	return v
}

func isNilEntry(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		return v.IsNil()
	}
	return false
}

func jsonName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, true
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// timeKeys are the document keys that hold timestamps.
var timeKeys = map[string]bool{
	"timestamp":        true,
	"first_seen":       true,
	"last_seen":        true,
	"expiry":           true,
	"last_used":        true,
	"last_updated":     true,
	"last_interaction": true,
	"last_processed":   true,
	"last_cleaned":     true,
}

var zonelessLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// parseTimestamp accepts RFC 3339 and zone-less ISO 8601, which is read as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// healTimestamps rewrites zone-less timestamps found under timeKeys in the
// value of key as RFC 3339. raw is returned unchanged when there are none.
func healTimestamps(key string, raw json.RawMessage) json.RawMessage {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	wrapped := map[string]any{key: v}
	if !healValue(wrapped) {
		return raw
	}
	out, err := json.Marshal(wrapped[key])
	if err != nil {
		return raw
	}
	return out
}

func healValue(v any) bool {
	changed := false
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			if s, ok := e.(string); ok && timeKeys[k] {
				if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
					continue
				}
				if t, ok := parseTimestamp(s); ok {
					x[k] = t.Format(time.RFC3339Nano)
					changed = true
				}
				continue
			}
			if healValue(e) {
				changed = true
			}
		}
	case []any:
		for _, e := range x {
			if healValue(e) {
				changed = true
			}
		}
	}
	return changed
}

// encode renders the document with four-space indentation. Extras are
// written back next to the known keys.
func encode(r *Root, extras rawDocument) ([]byte, error) {
	doc, err := splitRoot(r)
	if err != nil {
		return nil, err
	}
	for k, v := range extras {
		if _, known := doc[k]; !known {
			doc[k] = v
		}
	}
	return json.MarshalIndent(doc, "", "    ")
}

// cloneRoot returns a deep copy of r.
func cloneRoot(r *Root) (*Root, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	out := &Root{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	out.normalize(r.LastCleaned)
	return out, nil
}
