package discord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// MessageLimit is Discord's maximum message length in characters.
const MessageLimit = 2000

var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// mentionedID returns the first user id mentioned in s.
func mentionedID(s string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// stripMention removes mentions of userID from content.
func stripMention(content, userID string) string {
	if userID == "" {
		return content
	}
	content = strings.ReplaceAll(content, "<@"+userID+">", "")
	content = strings.ReplaceAll(content, "<@!"+userID+">", "")
	return strings.TrimSpace(content)
}

func mention(userID string) string { return "<@" + userID + ">" }

// splitMessage cuts text into chunks of at most limit characters, breaking on
// line boundaries where possible.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n <= limit {
			cur.WriteString(line)
			curLen += n
			continue
		}
		flush()
		for n > limit {
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen = n
	}
	flush()
	for i, c := range chunks {
		chunks[i] = strings.TrimRight(c, "\n")
	}
	return chunks
}

// channelResponder sends replies into one channel.
type channelResponder struct {
	api       API
	channelID string
}

func (r channelResponder) Send(_ context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range splitMessage(text, MessageLimit) {
		if chunk == "" {
			continue
		}
		if _, err := r.api.ChannelMessageSend(r.channelID, chunk); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

func (r channelResponder) SendFile(_ context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.api.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{Name: filepath.Base(path), ContentType: "image/png", Reader: f}},
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}
