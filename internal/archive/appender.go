// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package archive

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dealhound/dealhound/internal/events"
	"github.com/dealhound/dealhound/internal/logging"
	"github.com/dealhound/dealhound/internal/metrics"
)

// AppenderConfig tunes batching and the circuit breaker.
type AppenderConfig struct {
	// BatchSize triggers an immediate flush when the buffer reaches it.
	BatchSize int

	// FlushInterval flushes partial batches on a timer.
	FlushInterval time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit; BreakerCooldown is how long it stays open.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	// MaxBuffer caps retained clicks while the store is failing. Oldest
	// clicks are dropped beyond it; the ledger remains the source of truth.
	MaxBuffer int
}

// DefaultAppenderConfig returns production defaults.
func DefaultAppenderConfig() AppenderConfig {
	return AppenderConfig{
		BatchSize:        128,
		FlushInterval:    5 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		MaxBuffer:        10000,
	}
}

// Appender buffers clicks and writes them to the store in batches. It
// implements events.Archiver and suture.Service. A failing store opens the
// circuit breaker; buffered clicks are retained up to MaxBuffer and retried
// on the next flush.
type Appender struct {
	cfg     AppenderConfig
	store   ClickStore
	breaker *gobreaker.CircuitBreaker[any]

	mu     sync.Mutex
	buffer []events.ClickRecorded

	flushNow chan struct{}
}

// NewAppender wraps a click store with batching and breaker protection.
func NewAppender(cfg AppenderConfig, store ClickStore) *Appender {
	def := DefaultAppenderConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = def.MaxBuffer
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "click-archive",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("archive circuit breaker state change")
		},
	})

	return &Appender{
		cfg:      cfg,
		store:    store,
		breaker:  breaker,
		flushNow: make(chan struct{}, 1),
	}
}

// ArchiveClick buffers one click. Never blocks on the store.
func (a *Appender) ArchiveClick(_ context.Context, e events.ClickRecorded) error {
	a.mu.Lock()
	a.buffer = append(a.buffer, e)
	if overflow := len(a.buffer) - a.cfg.MaxBuffer; overflow > 0 {
		a.buffer = a.buffer[overflow:]
		metrics.ArchiveWrites.WithLabelValues("dropped").Add(float64(overflow))
	}
	full := len(a.buffer) >= a.cfg.BatchSize
	a.mu.Unlock()

	if full {
		select {
		case a.flushNow <- struct{}{}:
		default:
		}
	}
	return nil
}

// Serve flushes on the interval, on batch-size pressure, and once more on
// shutdown. Implements suture.Service.
func (a *Appender) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			a.flush(ctx)
		case <-a.flushNow:
			a.flush(ctx)
		}
	}
}

// flush writes the buffered batch through the breaker. On failure the
// batch is put back at the front of the buffer for the next attempt.
func (a *Appender) flush(ctx context.Context) {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	_, err := a.breaker.Execute(func() (any, error) {
		return nil, a.store.InsertClicks(ctx, batch)
	})
	if err != nil {
		metrics.ArchiveWrites.WithLabelValues("error").Inc()
		logging.Error().Err(err).Int("batch", len(batch)).Msg("archive flush failed")

		a.mu.Lock()
		a.buffer = append(batch, a.buffer...)
		if overflow := len(a.buffer) - a.cfg.MaxBuffer; overflow > 0 {
			a.buffer = a.buffer[overflow:]
			metrics.ArchiveWrites.WithLabelValues("dropped").Add(float64(overflow))
		}
		a.mu.Unlock()
		return
	}

	metrics.ArchiveWrites.WithLabelValues("ok").Inc()
}

// Buffered reports the current buffer depth.
func (a *Appender) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

func (a *Appender) String() string { return "click-archiver" }
