package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Level: slog.LevelInfo, Console: &buf})
	defer closer.Close()

	Named(logger, "mind").Info("memory loaded", "users", 3)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "memory loaded")
	assert.Contains(t, out, "logger=mind")
	assert.NotContains(t, out, "hidden")
}

func TestFileSinkWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "bella.log")
	logger, closer := New(Options{Level: slog.LevelInfo, Console: &buf, File: path, MaxSizeMB: 1})

	Named(logger, "chat").Warn("slow reply", "ms", 1200)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "slow reply", rec["msg"])
	assert.Equal(t, "chat", rec[NameKey])
	assert.Equal(t, "WARN", rec["level"])
	assert.Contains(t, buf.String(), "slow reply")
}

func TestDiscordgoLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Level: slog.LevelWarn, Console: &buf})
	defer closer.Close()

	fn := DiscordgoLogger(logger)
	fn(discordgo.LogInformational, 0, "connected to %s", "gateway")
	fn(discordgo.LogError, 0, "websocket closed\nreconnecting %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "connected to gateway")
	assert.Contains(t, out, "websocket closedreconnecting 3")
	assert.Contains(t, out, "logger=discordgo")
}
