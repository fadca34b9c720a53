package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"bella/internal/config"
)

type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Transcriber turns voice attachments into text: ffmpeg converts them to
// 16 kHz mono WAV, then a Whisper-compatible endpoint transcribes them.
type Transcriber struct {
	client  audioTranscriber
	model   string
	convert func(ctx context.Context, in, out string) error
	dir     string
	log     *slog.Logger
}

// NewTranscriber builds a transcriber. httpClient may be nil.
func NewTranscriber(cfg config.VoiceConfig, httpClient *http.Client, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	clientCfg.HTTPClient = httpClient

	ffmpeg := cfg.FFmpegPath
	return &Transcriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		convert: func(ctx context.Context, in, out string) error {
			return runFFmpeg(ctx, ffmpeg, in, out)
		},
		dir: os.TempDir(),
		log: logger.With("logger", "ai", "component", "transcribe"),
	}
}

// Transcribe converts and transcribes audio. name is the original file name
// and only used for its extension.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, name string) (string, error) {
	id := uuid.NewString()
	in := filepath.Join(t.dir, "bella_voice_"+id+filepath.Ext(name))
	out := filepath.Join(t.dir, "bella_voice_"+id+".wav")
	defer os.Remove(in)
	defer os.Remove(out)

	if err := os.WriteFile(in, audio, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage audio: %w", err)
	}
	if err := t.convert(ctx, in, out); err != nil {
		return "", fmt.Errorf("failed to convert audio: %w", err)
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: out,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	t.log.Debug("voice transcribed", "chars", len(text))
	return text, nil
}

func runFFmpeg(ctx context.Context, bin, in, out string) error {
	cmd := exec.CommandContext(ctx, bin, "-hide_banner", "-loglevel", "error", "-y",
		"-i", in, "-ar", "16000", "-ac", "1", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
