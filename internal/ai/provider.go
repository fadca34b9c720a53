// Package ai talks to the generative backends: chat and vision completions,
// image generation and voice transcription.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bella/internal/config"
)

var (
	// ErrEmptyResponse means the backend answered without any choices.
	ErrEmptyResponse = errors.New("empty response")
	// ErrGarbageResponse means the reply was an error page or too short to use.
	ErrGarbageResponse = errors.New("garbage response")
)

// Request is one completion call. Images are JPEG bytes; when present the
// vision model is used and System and User travel as separate text parts.
type Request struct {
	System string
	User   string
	Images [][]byte
}

// TextPrompt is the single-message form used for text-only completions.
func (r Request) TextPrompt() string {
	if r.System == "" {
		return r.User
	}
	return r.System + "\n\nUser message: " + r.User
}

// Provider generates a reply for a request.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New returns the provider named by cfg.Provider.
func New(cfg config.AIConfig, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg, nil, logger), nil
	case "pollinations":
		return NewPollinationsProvider(cfg, nil, logger), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", cfg.Provider)
	}
}
