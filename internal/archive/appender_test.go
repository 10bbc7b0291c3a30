// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dealhound/dealhound/internal/events"
)

// mockStore records inserts and can be told to fail.
type mockStore struct {
	mu       sync.Mutex
	inserted []events.ClickRecorded
	batches  int
	attempts int
	fail     bool
}

func (m *mockStore) InsertClicks(_ context.Context, clicks []events.ClickRecorded) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.fail {
		return errors.New("store down")
	}
	m.inserted = append(m.inserted, clicks...)
	m.batches++
	return nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

func (m *mockStore) tries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *mockStore) setFail(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

func click(i int) events.ClickRecorded {
	return events.NewClickRecorded(fmt.Sprintf("deal-%d", i), "software", "", time.Now().UTC())
}

func TestAppenderFlushesOnBatchSize(t *testing.T) {
	store := &mockStore{}
	app := NewAppender(AppenderConfig{BatchSize: 4, FlushInterval: time.Hour}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.Serve(ctx) }()

	for i := 0; i < 4; i++ {
		if err := app.ArchiveClick(ctx, click(i)); err != nil {
			t.Fatalf("ArchiveClick: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && store.count() < 4 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := store.count(); got != 4 {
		t.Errorf("flushed %d clicks, want 4", got)
	}
}

func TestAppenderFlushesOnShutdown(t *testing.T) {
	store := &mockStore{}
	app := NewAppender(AppenderConfig{BatchSize: 100, FlushInterval: time.Hour}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = app.Serve(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		_ = app.ArchiveClick(ctx, click(i))
	}
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("appender did not shut down")
	}
	if got := store.count(); got != 3 {
		t.Errorf("shutdown flushed %d clicks, want 3", got)
	}
}

func TestAppenderRetainsBatchOnFailure(t *testing.T) {
	store := &mockStore{fail: true}
	app := NewAppender(AppenderConfig{BatchSize: 2, FlushInterval: time.Hour}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.Serve(ctx) }()

	_ = app.ArchiveClick(ctx, click(0))
	_ = app.ArchiveClick(ctx, click(1))

	// Wait for the failed flush to put the batch back.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && app.Buffered() != 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if app.Buffered() != 2 {
		t.Fatalf("failed batch not retained: buffered=%d", app.Buffered())
	}

	// Store recovers; the next trigger drains the retained batch.
	store.setFail(false)
	_ = app.ArchiveClick(ctx, click(2))

	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && store.count() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := store.count(); got != 3 {
		t.Errorf("recovered flush wrote %d clicks, want 3", got)
	}
}

func TestAppenderBreakerShortCircuitsRepeatedFailures(t *testing.T) {
	store := &mockStore{fail: true}
	app := NewAppender(AppenderConfig{
		BatchSize:        100,
		FlushInterval:    time.Hour,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Hour,
	}, store)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = app.ArchiveClick(ctx, click(i))
		app.flush(ctx)
	}

	// Two consecutive failures trip the breaker; the remaining flushes
	// are rejected without touching the store, and every click stays
	// buffered for the next recovery.
	if got := store.tries(); got != 2 {
		t.Errorf("store attempts = %d, want 2 before the breaker opened", got)
	}
	if app.Buffered() != 5 {
		t.Errorf("buffered = %d, want 5 retained", app.Buffered())
	}
}

func TestAppenderDropsOldestBeyondMaxBuffer(t *testing.T) {
	store := &mockStore{fail: true}
	app := NewAppender(AppenderConfig{BatchSize: 1000, FlushInterval: time.Hour, MaxBuffer: 5}, store)

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_ = app.ArchiveClick(ctx, click(i))
	}
	if got := app.Buffered(); got != 5 {
		t.Errorf("buffer = %d, want cap 5", got)
	}
}
