// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealhound/dealhound/internal/logging"
	"github.com/dealhound/dealhound/internal/metrics"
	"github.com/dealhound/dealhound/internal/store"
)

// ErrRateLimited is returned when click ingestion exceeds the configured rate.
var ErrRateLimited = errors.New("ledger: click ingestion rate limited")

// errActorStopped is returned when a command is submitted after shutdown.
var errActorStopped = errors.New("ledger: actor stopped")

// ActorConfig holds actor runtime settings on top of the ledger constants.
type ActorConfig struct {
	Ledger Config

	// FlushInterval is how often dirty state is persisted. Zero disables
	// periodic flushing (state still flushes on shutdown).
	FlushInterval time.Duration

	// IngestRate and IngestBurst clamp click ingestion. Zero rate disables
	// the limiter.
	IngestRate  float64
	IngestBurst int
}

// command is one serialized mutation applied by the actor goroutine.
type command struct {
	click     *ClickEvent
	reinforce *reinforceCmd
	flush     chan error
}

type reinforceCmd struct {
	category string
	pattern  string
}

// Actor is the single writer for the engagement ledger. All mutation is
// funneled through its command channel and applied by one goroutine; readers
// call View for an immutable snapshot that is swapped atomically after every
// mutation.
//
// Actor implements suture.Service.
type Actor struct {
	cfg     ActorConfig
	store   store.SnapshotStore
	limiter *rate.Limiter

	cmds chan command
	view atomic.Pointer[Snapshot]

	// storeVersion is the version of the last loaded or flushed snapshot.
	// Touched only by the actor goroutine.
	storeVersion uint64
}

// NewActor creates a ledger actor backed by the given snapshot store. The
// view starts empty; persisted state is adopted when Serve starts.
func NewActor(cfg ActorConfig, st store.SnapshotStore) *Actor {
	a := &Actor{
		cfg:   cfg,
		store: st,
		cmds:  make(chan command, 256),
	}
	if cfg.IngestRate > 0 {
		burst := cfg.IngestBurst
		if burst <= 0 {
			burst = int(cfg.IngestRate)
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.IngestRate), burst)
	}
	a.view.Store(NewSnapshot())
	return a
}

// View returns the current immutable ledger snapshot. Never nil. The caller
// must not mutate it.
func (a *Actor) View() *Snapshot {
	return a.view.Load()
}

// RecordClick submits a click for serialization by the actor goroutine.
func (a *Actor) RecordClick(ctx context.Context, slug, category string, at time.Time) error {
	if slug == "" {
		return nil
	}
	if a.limiter != nil && !a.limiter.Allow() {
		metrics.ClicksDropped.WithLabelValues("rate_limited").Inc()
		return ErrRateLimited
	}
	return a.submit(ctx, command{click: &ClickEvent{Deal: slug, Category: category, At: at}})
}

// Reinforce submits a (category, pattern) reinforcement.
func (a *Actor) Reinforce(ctx context.Context, category, patternKey string) error {
	return a.submit(ctx, command{reinforce: &reinforceCmd{category: category, pattern: patternKey}})
}

// Flush forces a synchronous persist of the current state.
func (a *Actor) Flush(ctx context.Context) error {
	resp := make(chan error, 1)
	if err := a.submit(ctx, command{flush: resp}); err != nil {
		return err
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit enqueues a command, respecting context cancellation.
func (a *Actor) submit(ctx context.Context, cmd command) error {
	select {
	case a.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve implements suture.Service. It loads persisted state, then applies
// commands until the context is cancelled, flushing dirty state periodically
// and once more on shutdown.
func (a *Actor) Serve(ctx context.Context) error {
	state := a.load(ctx)
	a.view.Store(state.Snapshot())

	var ticker *time.Ticker
	var tick <-chan time.Time
	if a.cfg.FlushInterval > 0 {
		ticker = time.NewTicker(a.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case cmd := <-a.cmds:
			a.apply(ctx, state, cmd)

		case <-tick:
			if state.Dirty() {
				if err := a.flush(ctx, state); err != nil {
					logging.Error().Err(err).Msg("periodic ledger flush failed")
				}
			}

		case <-ctx.Done():
			a.drain(state)
			if state.Dirty() {
				// The serve context is gone; give the final flush its own deadline.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := a.flush(flushCtx, state); err != nil {
					logging.Error().Err(err).Msg("final ledger flush failed")
				}
			}
			return ctx.Err()
		}
	}
}

// apply executes one command against the state and republishes the view.
func (a *Actor) apply(ctx context.Context, state *State, cmd command) {
	switch {
	case cmd.click != nil:
		state.RecordClick(cmd.click.Deal, cmd.click.Category, cmd.click.At)
		metrics.ClicksRecorded.WithLabelValues(cmd.click.Category).Inc()
	case cmd.reinforce != nil:
		state.Reinforce(cmd.reinforce.category, cmd.reinforce.pattern)
	case cmd.flush != nil:
		cmd.flush <- a.flush(ctx, state)
		return
	default:
		return
	}
	a.view.Store(state.Snapshot())
}

// drain applies whatever commands are already queued before shutdown.
func (a *Actor) drain(state *State) {
	for {
		select {
		case cmd := <-a.cmds:
			if cmd.flush != nil {
				cmd.flush <- errActorStopped
				continue
			}
			a.apply(context.Background(), state, cmd)
		default:
			return
		}
	}
}

// load reads the persisted ledger, self-healing to empty on any failure.
func (a *Actor) load(ctx context.Context) *State {
	v, err := a.store.Get(ctx, store.KeyLedger)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logging.Info().Msg("no persisted ledger, starting empty")
		return NewState(a.cfg.Ledger, nil)
	case err != nil:
		logging.Error().Err(err).Msg("ledger load failed, starting empty")
		return NewState(a.cfg.Ledger, nil)
	}
	a.storeVersion = v.Version
	return NewState(a.cfg.Ledger, Decode(v.Data))
}

// flush persists the current state. On a version conflict the store copy is
// newer than ours (external restore); adopt its version and retry once so
// the in-memory ledger wins.
func (a *Actor) flush(ctx context.Context, state *State) error {
	data, err := state.Snapshot().Encode()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	next, err := a.store.Put(ctx, store.KeyLedger, data, a.storeVersion)
	if errors.Is(err, store.ErrVersionConflict) {
		current, getErr := a.store.Get(ctx, store.KeyLedger)
		if getErr != nil && !errors.Is(getErr, store.ErrNotFound) {
			return fmt.Errorf("reload after conflict: %w", getErr)
		}
		logging.Warn().
			Uint64("ours", a.storeVersion).
			Uint64("theirs", current.Version).
			Msg("ledger version conflict, overwriting with in-memory state")
		next, err = a.store.Put(ctx, store.KeyLedger, data, current.Version)
	}
	if err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}

	a.storeVersion = next
	state.MarkClean()
	metrics.LedgerFlushes.Inc()
	return nil
}

// String names the actor for supervisor logs.
func (a *Actor) String() string { return "ledger-actor" }
