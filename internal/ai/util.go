package ai

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

func isGarbageResponse(s string) bool {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "<html"):
		return true
	case strings.Contains(l, "not allowed"):
		return true
	case len([]rune(strings.TrimSpace(s))) < 2:
		return true
	}
	return false
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// cleanReply strips reasoning blocks and one layer of wrapping quotes.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(thinkBlock.ReplaceAllString(reply, ""))

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				reply = strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				reply = strings.TrimSpace(reply)
				break
			}
		}
	}
	return reply
}

// finish cleans a raw completion and rejects unusable output.
func finish(raw string) (string, error) {
	reply := cleanReply(raw)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	if isGarbageResponse(reply) {
		return "", ErrGarbageResponse
	}
	return reply, nil
}
