// Package jobmgr runs named background jobs with cancellation and in-memory
// tracking of what is running.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(logger)
//	_ = jm.StartAsync(ctx, "keepalive", srv.Run)
//	...
//	jm.StopAll()
//	jm.Wait()
//
// Jobs run in their own goroutines and are removed on completion.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

// Runner is the body of a job. It must return when ctx is cancelled.
type Runner func(ctx context.Context) error

// Event is a lifecycle notification for a job.
type Event struct {
	Job   string
	State string // running, done, error
	Err   error
}

// Reporter receives lifecycle events.
type Reporter func(Event)

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager starts, stops and tracks jobs. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	wg       sync.WaitGroup
	log      *slog.Logger
	Reporter Reporter
}

// NewManager creates a Manager that logs lifecycle events to logger.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs: make(map[string]*job),
		log:  logger.With("logger", "jobs"),
	}
}

// StartAsync runs runner in a goroutine under a child of parent. Starting a
// name that is already running is an error.
func (m *Manager) StartAsync(parent context.Context, name string, runner Runner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job '%s' is already running", name)
	}

	ctx, cancel := context.WithCancel(parent)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer close(j.done)
		defer cancel()

		m.report(Event{Job: name, State: "running"})
		err := runner(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.report(Event{Job: name, State: "error", Err: err})
		} else {
			m.report(Event{Job: name, State: "done"})
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, j := range m.jobs {
		j.cancel()
		delete(m.jobs, name)
	}
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// List returns the sorted names of running jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Status returns a human-readable summary, e.g. "Running jobs: bot, keepalive".
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(active, ", ")
}

func (m *Manager) report(ev Event) {
	switch ev.State {
	case "error":
		m.log.Error("job failed", "job", ev.Job, tint.Err(ev.Err))
	default:
		m.log.Info("job "+ev.State, "job", ev.Job)
	}
	if m.Reporter != nil {
		m.Reporter(ev)
	}
}
