package jobmgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuietManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStartStopAndStatus(t *testing.T) {
	m := newQuietManager()
	started := make(chan struct{})

	require.NoError(t, m.StartAsync(context.Background(), "bot", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.Equal(t, []string{"bot"}, m.List())
	assert.Equal(t, "Running jobs: bot", m.Status())
	assert.Error(t, m.StartAsync(context.Background(), "bot", func(context.Context) error { return nil }))

	require.NoError(t, m.Stop("bot"))
	m.Wait()
	assert.Equal(t, "No jobs are running.", m.Status())
	assert.Error(t, m.Stop("bot"))
}

func TestReporterSeesFailure(t *testing.T) {
	m := newQuietManager()
	var mu sync.Mutex
	var events []Event
	m.Reporter = func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	boom := errors.New("listen failed")
	require.NoError(t, m.StartAsync(context.Background(), "keepalive", func(context.Context) error { return boom }))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "running", events[0].State)
	assert.Equal(t, "error", events[1].State)
	assert.ErrorIs(t, events[1].Err, boom)
	assert.Empty(t, m.List())
}

func TestParentCancellationStopsJobs(t *testing.T) {
	m := newQuietManager()
	ctx, cancel := context.WithCancel(context.Background())
	for _, name := range []string{"a", "b"} {
		require.NoError(t, m.StartAsync(ctx, name, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
	}
	cancel()

	done := make(chan struct{})
	go func() { m.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not stop")
	}
}
