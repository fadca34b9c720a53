package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"bella/internal/config"
)

// ImageGenerator renders prompts through the pollinations image endpoint and
// saves the result to a temporary file.
type ImageGenerator struct {
	client *http.Client
	cfg    config.ImageConfig
	dir    string
	log    *slog.Logger
}

// NewImageGenerator builds a generator. httpClient may be nil.
func NewImageGenerator(cfg config.ImageConfig, httpClient *http.Client, logger *slog.Logger) *ImageGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &ImageGenerator{
		client: httpClient,
		cfg:    cfg,
		dir:    os.TempDir(),
		log:    logger.With("logger", "ai", "component", "image"),
	}
}

// URL builds the generation URL. seed is optional.
func (g *ImageGenerator) URL(prompt string, seed *int) string {
	q := url.Values{}
	q.Set("width", strconv.Itoa(g.cfg.Width))
	q.Set("height", strconv.Itoa(g.cfg.Height))
	q.Set("model", g.cfg.Model)
	if seed != nil {
		q.Set("seed", strconv.Itoa(*seed))
	}
	return g.cfg.BaseURL + url.PathEscape(prompt) + "?" + q.Encode()
}

// Generate downloads the image for prompt into a new temporary PNG file and
// returns its path. The caller removes the file.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string, seed *int) (string, error) {
	if prompt == "" {
		return "", errors.New("empty image prompt")
	}
	data, err := Fetch(ctx, g.client, g.URL(prompt, seed))
	if err != nil {
		g.log.Warn("image generation failed", "prompt", prompt, tint.Err(err))
		return "", fmt.Errorf("failed to generate image: %w", err)
	}

	path := filepath.Join(g.dir, "bella_"+uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	g.log.Debug("image generated", "prompt", prompt, "path", path, "bytes", len(data))
	return path, nil
}
