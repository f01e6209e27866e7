package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maxfraid/cs2crap/internal/scanner"
)

type mockRunner struct {
	mu     sync.Mutex
	runs   []scanner.Options
	refuse bool
}

func (m *mockRunner) Run(ctx context.Context, opts scanner.Options) scanner.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, opts)
	if m.refuse {
		return scanner.Session{Refused: true}
	}
	return scanner.Session{Processed: 1}
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

type mockPublisher struct {
	mu    sync.Mutex
	trims int
}

func (m *mockPublisher) Publish(key string, message []byte) error { return nil }
func (m *mockPublisher) Close() error                             { return nil }

func (m *mockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

type fixedRoutes struct {
	routes scanner.RouteSet
}

func (f fixedRoutes) Routes() scanner.RouteSet { return f.routes }

func TestWorkerRunsFullPassAndTrims(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	w := NewWorker(runner, nil, pub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	assert.Equal(t, 1, runner.count(), "one pass runs before the interval wait notices the cancel")
	assert.True(t, runner.runs[0].All, "unattended passes scan the whole database")
	assert.True(t, runner.runs[0].Routes.Any())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 1, pub.trims)
}

func TestWorkerSkipsRefusedPass(t *testing.T) {
	runner := &mockRunner{refuse: true}
	pub := &mockPublisher{}
	w := NewWorker(runner, nil, pub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	assert.Equal(t, 1, runner.count())
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 0, pub.trims, "a refused pass must not touch the streams")
}

func TestWorkerHonorsRouteProvider(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	w := NewWorker(runner, fixedRoutes{}, pub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	assert.Equal(t, 0, runner.count(), "all routes disabled skips the pass")
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 0, pub.trims)
}
