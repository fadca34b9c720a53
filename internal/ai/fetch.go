package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxDownloadBytes caps any single download.
const MaxDownloadBytes = 25 << 20

// Fetch downloads url with client and returns the body of a 2xx response.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed with http %d: %s", resp.StatusCode, truncate(body))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read download: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", MaxDownloadBytes)
	}
	return data, nil
}
