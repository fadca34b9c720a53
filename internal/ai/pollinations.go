package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lmittmann/tint"

	"bella/internal/config"
	"bella/pkg/retrylimit"
)

const pollinationsTextURL = "https://text.pollinations.ai/openai"

// PollinationsProvider uses the keyless pollinations text endpoint. It has no
// vision support; images in a request are ignored.
type PollinationsProvider struct {
	client  *http.Client
	url     string
	cfg     config.AIConfig
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
	log     *slog.Logger
}

// NewPollinationsProvider builds the provider. httpClient may be nil.
func NewPollinationsProvider(cfg config.AIConfig, httpClient *http.Client, logger *slog.Logger) *PollinationsProvider {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("logger", "ai", "provider", "pollinations")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &PollinationsProvider{
		client:  httpClient,
		url:     pollinationsTextURL,
		cfg:     cfg,
		limiter: newLimiter(cfg.Rate),
		retry:   retrylimit.RetryConfig{MaxAttempts: cfg.MaxAttempts, Jitter: true, Logger: log},
		log:     log,
	}
}

type pollinationsMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type pollinationsRequest struct {
	Model       string                `json:"model"`
	Messages    []pollinationsMessage `json:"messages"`
	Temperature float32               `json:"temperature"`
	Private     bool                  `json:"private"`
}

func (p *PollinationsProvider) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(pollinationsRequest{
		Model:       "openai",
		Messages:    []pollinationsMessage{{Role: "user", Content: req.TextPrompt()}},
		Temperature: p.cfg.Temperature,
		Private:     true,
	})
	if err != nil {
		return "", err
	}

	var reply string
	err = retrylimit.Do(ctx, p.limiter, p.retry, func(ctx context.Context) error {
		out, err := p.post(ctx, payload)
		if err != nil {
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		p.log.Warn("completion failed", tint.Err(err))
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return reply, nil
}

func (p *PollinationsProvider) post(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", retrylimit.Fatal(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &retrylimit.HTTPError{Code: resp.StatusCode, Err: fmt.Errorf("pollinations: %s", truncate(body))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", herr
		}
		return "", retrylimit.Fatal(herr)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", ErrGarbageResponse
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode pollinations reply: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return finish(parsed.Choices[0].Message.Content)
}
