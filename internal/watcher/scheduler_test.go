package watcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/internal/watcher"
	"github.com/learnchain/txwatcher/pkg/db"
	"github.com/learnchain/txwatcher/pkg/events"
)

type fakeClock struct {
	mu        sync.Mutex
	requested []time.Duration
	tick      chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{tick: make(chan time.Time)}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.requested = append(c.requested, d)
	c.mu.Unlock()
	return c.tick
}

func (c *fakeClock) requestedIntervals() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	intervals := make([]time.Duration, len(c.requested))
	copy(intervals, c.requested)
	return intervals
}

func TestSchedulerUsesEffectiveInterval(t *testing.T) {
	fi := newFakeIndexer()
	fb := newFakeBackend()
	cfg := &config.WatcherConfig{PollIntervalMs: 30000, MaxRetries: 3}
	dispatcher, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)
	w := watcher.NewWatcher(cfg, fi, fb, dispatcher, db.NewMemoryStore(), events.NewEventBus(nil), nil)

	tx := moduleTx("module-101", "abc")
	tx.PollingInterval = 5 * time.Second
	w.AddPendingTx(tx)

	clock := newFakeClock()
	scheduler := watcher.NewScheduler(w, clock)
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	// First wait must use the per-tx override, not the 30s global.
	require.Eventually(t, func() bool {
		return len(clock.requestedIntervals()) >= 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 5*time.Second, clock.requestedIntervals()[0])

	// Delivering a tick runs one sweep.
	clock.tick <- time.Now()
	require.Eventually(t, func() bool {
		fi.mu.Lock()
		defer fi.mu.Unlock()
		return fi.batchCalls == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-scheduler.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
