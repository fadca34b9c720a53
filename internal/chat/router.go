package chat

import (
	"regexp"
	"sort"
	"strings"
)

var imageTriggers = []string{
	"generate", "create", "make", "draw", "imagine", "gen", "paint", "design",
	"سوي", "اصنع", "ارسم", "صمم", "اعمل", "صور", "رسم", "تخيل",
}

var imageObjects = []string{
	"image", "picture", "art", "drawing", "photo", "pic",
	"صورة", "رسمة", "فن", "تصميم", "صوره",
}

const objectLinks = `of|for|with|about|ل|من|عن|في`

var (
	triggerPatterns = compileAll(imageTriggers, `^%s\s+`)
	objectPatterns  = compileAll(imageObjects, `(^|\s+)%s(\s+(`+objectLinks+`))?(\s+|$)`)
	spaces          = regexp.MustCompile(`\s+`)
)

func compileAll(words []string, layout string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(strings.Replace(layout, "%s", regexp.QuoteMeta(w), 1))
	}
	return out
}

// Router decides whether a message is addressed to Bella and whether it asks
// for an image.
type Router struct {
	names []string
}

// NewRouter matches the given lowercase bot names. Longer names are tried
// first so "bellaa" is not cut as "bella".
func NewRouter(names []string) *Router {
	ns := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			ns = append(ns, n)
		}
	}
	sort.SliceStable(ns, func(i, j int) bool { return len(ns[i]) > len(ns[j]) })
	return &Router{names: ns}
}

// Addressed lowercases content and reports whether Bella should answer: she
// was mentioned or the text starts with one of her names. A leading name is
// stripped from the returned text.
func (r *Router) Addressed(content string, mentioned bool) (string, bool) {
	text := strings.TrimSpace(strings.ToLower(content))
	for _, n := range r.names {
		if strings.HasPrefix(text, n) {
			return strings.TrimSpace(text[len(n):]), true
		}
	}
	return text, mentioned
}

// ImagePrompt extracts an image prompt from addressed text. ok is false when
// no trigger word appears or nothing is left after stripping.
func ImagePrompt(text string) (string, bool) {
	if !containsAny(text, imageTriggers) {
		return "", false
	}
	prompt := text
	for _, re := range triggerPatterns {
		prompt = re.ReplaceAllString(prompt, "")
	}
	for _, re := range objectPatterns {
		prompt = re.ReplaceAllString(prompt, " ")
	}
	prompt = strings.TrimSpace(spaces.ReplaceAllString(prompt, " "))
	return prompt, prompt != ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
