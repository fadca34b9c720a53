package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"bella/internal/config"
	"bella/pkg/retrylimit"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider calls any OpenAI-compatible chat completion endpoint.
type OpenAIProvider struct {
	client  chatCompleter
	cfg     config.AIConfig
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
	log     *slog.Logger
}

// NewOpenAIProvider builds a provider for cfg. httpClient may be nil.
func NewOpenAIProvider(cfg config.AIConfig, httpClient *http.Client, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("logger", "ai", "provider", "openai")

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	clientCfg.HTTPClient = httpClient

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		limiter: newLimiter(cfg.Rate),
		retry:   retrylimit.RetryConfig{MaxAttempts: cfg.MaxAttempts, Jitter: true, Logger: log},
		log:     log,
	}
}

func newLimiter(rps float64) *retrylimit.AdaptiveLimiter {
	if rps <= 0 {
		rps = 2
	}
	r := rate.Limit(rps)
	return retrylimit.NewAdaptiveLimiter(r, r/4, r*2, r/10, 0.5)
}

// Generate sends req to the text model, or to the vision model when it
// carries images.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	creq := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		TopP:        p.cfg.TopP,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if len(req.Images) > 0 {
		creq.Model = p.cfg.VisionModel
		creq.Messages = []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: visionParts(req),
		}}
	} else {
		creq.Messages = []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: req.TextPrompt(),
		}}
	}

	var reply string
	err := retrylimit.Do(ctx, p.limiter, p.retry, func(ctx context.Context) error {
		resp, err := p.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		out, err := finish(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		p.log.Warn("completion failed", "model", creq.Model, "images", len(req.Images), tint.Err(err))
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return reply, nil
}

func visionParts(req Request) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+2)
	if req.System != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: req.System})
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: req.User})
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return parts
}

// classify maps client errors onto retry decisions: 429 and 5xx retry,
// other HTTP failures stop.
func classify(err error) error {
	code := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	}
	if code == 0 {
		return err
	}
	herr := &retrylimit.HTTPError{Code: code, Err: err}
	if code == http.StatusTooManyRequests || code >= 500 {
		return herr
	}
	return retrylimit.Fatal(herr)
}
