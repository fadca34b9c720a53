package keepalive

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEndpoints(t *testing.T) {
	s := New(":0", time.Minute, quietLogger())

	for path, want := range map[string]string{"/": aliveText, "/health": "OK"} {
		resp, err := s.App().Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode, path)
		assert.Equal(t, want, string(body), path)
	}
}

func TestSecondRequestIsCached(t *testing.T) {
	s := New(":0", time.Minute, quietLogger())

	resp, err := s.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))

	resp, err = s.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "public, max-age=")
}

func TestUnknownPath(t *testing.T) {
	s := New(":0", time.Minute, quietLogger())
	resp, err := s.App().Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", time.Second, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
