// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dealhound/dealhound/internal/catalog"
	"github.com/dealhound/dealhound/internal/content"
	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/logging"
	"github.com/dealhound/dealhound/internal/metrics"
	"github.com/dealhound/dealhound/internal/store"
)

// SchedulerConfig tunes the periodic analytics pulse.
type SchedulerConfig struct {
	// Interval between automatic pulse runs.
	Interval time.Duration

	// LiftEpsilon is the Laplace smoothing constant for rising-term lift.
	LiftEpsilon float64
}

// DefaultSchedulerConfig returns production defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:    10 * time.Minute,
		LiftEpsilon: 0.5,
	}
}

// Scheduler runs the analytics pulse on a timer and on demand, persists
// each snapshot with optimistic versioning, and refreshes the per-category
// content entropy gauges. The freshest snapshot is always available via
// Current without blocking.
type Scheduler struct {
	cfg   SchedulerConfig
	pulse *Pulse
	st    store.SnapshotStore

	library    *catalog.Library
	ledgerView func() *ledger.Snapshot
	generator  *content.Engine
	broadcast  func(any)

	current atomic.Pointer[Snapshot]
	version uint64

	runNow chan chan *Snapshot
}

// NewScheduler wires the pulse loop. generator and broadcast may be nil;
// entropy gauges and pulse notifications are skipped respectively.
func NewScheduler(
	cfg SchedulerConfig,
	st store.SnapshotStore,
	library *catalog.Library,
	ledgerView func() *ledger.Snapshot,
	generator *content.Engine,
	broadcast func(any),
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerConfig().Interval
	}
	if cfg.LiftEpsilon <= 0 {
		cfg.LiftEpsilon = DefaultSchedulerConfig().LiftEpsilon
	}

	s := &Scheduler{
		cfg:        cfg,
		pulse:      NewPulse(cfg.LiftEpsilon),
		st:         st,
		library:    library,
		ledgerView: ledgerView,
		generator:  generator,
		broadcast:  broadcast,
		runNow:     make(chan chan *Snapshot),
	}
	s.current.Store(NewSnapshot())
	return s
}

// Current returns the latest analytics snapshot. Never nil.
func (s *Scheduler) Current() *Snapshot {
	return s.current.Load()
}

// RunOnce triggers an immediate pulse and waits for its snapshot. Used by
// the admin API.
func (s *Scheduler) RunOnce(ctx context.Context) (*Snapshot, error) {
	resp := make(chan *Snapshot, 1)
	select {
	case s.runNow <- resp:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case snap := <-resp:
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve loads the persisted snapshot, then pulses on the interval and on
// demand until ctx is cancelled. Implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.load(ctx)
	s.run(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		case resp := <-s.runNow:
			resp <- s.run(ctx)
		}
	}
}

// load adopts the persisted snapshot so the first pulse has a previous
// table to compute lift against.
func (s *Scheduler) load(ctx context.Context) {
	v, err := s.st.Get(ctx, store.KeyAnalytics)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Error().Err(err).Msg("analytics snapshot load failed, starting empty")
		}
		return
	}
	s.current.Store(Decode(v.Data))
	s.version = v.Version
}

// run executes one pulse cycle: build, persist, gauge, broadcast.
func (s *Scheduler) run(ctx context.Context) *Snapshot {
	started := time.Now()
	prev := s.current.Load()

	snap := s.pulse.Build(s.library.All(), prev, started)
	s.current.Store(snap)
	s.persist(ctx, snap)
	s.updateEntropy(started)

	metrics.PulseRuns.Inc()
	metrics.PulseDuration.Observe(time.Since(started).Seconds())

	if s.broadcast != nil {
		s.broadcast(map[string]any{
			"generatedAt": snap.GeneratedAt,
			"categories":  len(snap.Categories),
		})
	}

	logging.Info().
		Int("categories", len(snap.Categories)).
		Dur("took", time.Since(started)).
		Msg("analytics pulse complete")
	return snap
}

// persist writes the snapshot with the version read at load. The scheduler
// is the only writer for the analytics key; on conflict the store's
// version is adopted and the write retried once.
func (s *Scheduler) persist(ctx context.Context, snap *Snapshot) {
	data, err := snap.Encode()
	if err != nil {
		logging.Error().Err(err).Msg("analytics snapshot encode failed")
		return
	}

	next, err := s.st.Put(ctx, store.KeyAnalytics, data, s.version)
	if errors.Is(err, store.ErrVersionConflict) {
		if v, gerr := s.st.Get(ctx, store.KeyAnalytics); gerr == nil {
			s.version = v.Version
			next, err = s.st.Put(ctx, store.KeyAnalytics, data, s.version)
		}
	}
	if err != nil {
		metrics.StoreOps.WithLabelValues("put", "error").Inc()
		logging.Error().Err(err).Msg("analytics snapshot persist failed")
		return
	}
	s.version = next
	metrics.StoreOps.WithLabelValues("put", "ok").Inc()
}

// updateEntropy regenerates each category's content batch and gauges the
// unique-to-total CTA ratio, the early-warning signal for template
// degeneration.
func (s *Scheduler) updateEntropy(now time.Time) {
	if s.generator == nil || s.ledgerView == nil {
		return
	}
	led := s.ledgerView()

	for category, snap := range s.library.All() {
		batch := s.generator.GenerateBatch(snap.Items, led, now)
		ctas := make([]string, 0, len(batch))
		for _, a := range batch {
			ctas = append(ctas, a.CTA)
		}
		metrics.ContentEntropy.WithLabelValues(category).Set(Diversity(ctas))
	}
}

func (s *Scheduler) String() string { return "analytics-scheduler" }
